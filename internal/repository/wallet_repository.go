package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stagelink/gig-backend/internal/models"
)

type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetBalance возвращает баланс исполнителя, создаёт если не существует.
func (r *WalletRepository) GetBalance(ctx context.Context, userID uuid.UUID, currency string) (*models.WalletBalance, error) {
	var balance models.WalletBalance
	query := `
		INSERT INTO wallet_balances (user_id, available, currency)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING user_id, available, currency, updated_at
	`
	if err := r.db.GetContext(ctx, &balance, query, userID, currency); err != nil {
		return nil, fmt.Errorf("wallet repository: get balance %w", err)
	}
	return &balance, nil
}

// CreditPayout начисляет исполнителю выплату за проект. Изменение баланса
// и запись транзакции выполняются в одной транзакции БД: одно без другого
// существовать не может.
func (r *WalletRepository) CreditPayout(ctx context.Context, userID, projectID uuid.UUID, amount float64, currency string) (*models.WalletTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_balances (user_id, available, currency)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET available = wallet_balances.available + $2, updated_at = NOW()
	`, userID, amount, currency)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: credit balance %w", err)
	}

	var transaction models.WalletTransaction
	err = tx.GetContext(ctx, &transaction, `
		INSERT INTO wallet_transactions (user_id, project_id, type, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, project_id, type, amount, currency, status, metadata, created_at
	`, userID, projectID, models.WalletTxTypeGigPayout, amount, currency, models.WalletTxStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: credit transaction %w", err)
	}

	return &transaction, tx.Commit()
}

// DebitRefund списывает с баланса исполнителя возврат по спору. Списание
// ограничено текущим балансом: при нехватке средств долг фиксируется в
// метаданных транзакции (shortfall) для ручного разбора, баланс никогда
// не уходит в минус. Возвращает транзакцию и размер недостачи.
func (r *WalletRepository) DebitRefund(ctx context.Context, userID, projectID uuid.UUID, amount float64, currency string) (*models.WalletTransaction, float64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()

	// Чтение и изменение баланса сериализуются блокировкой строки:
	// одновременные начисление и списание по одному кошельку не теряются.
	var balance models.WalletBalance
	err = tx.GetContext(ctx, &balance, `
		INSERT INTO wallet_balances (user_id, available, currency)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING user_id, available, currency, updated_at
	`, userID, currency)
	if err != nil {
		return nil, 0, fmt.Errorf("wallet repository: lock balance %w", err)
	}

	debit := amount
	shortfall := 0.0
	status := models.WalletTxStatusCompleted
	if balance.Available < amount {
		debit = balance.Available
		shortfall = amount - balance.Available
		status = models.WalletTxStatusShortfall
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE wallet_balances SET available = available - $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, debit)
	if err != nil {
		return nil, 0, fmt.Errorf("wallet repository: debit balance %w", err)
	}

	meta, err := json.Marshal(map[string]float64{"requested": amount, "debited": debit, "shortfall": shortfall})
	if err != nil {
		return nil, 0, fmt.Errorf("wallet repository: marshal metadata %w", err)
	}

	var transaction models.WalletTransaction
	err = tx.GetContext(ctx, &transaction, `
		INSERT INTO wallet_transactions (user_id, project_id, type, amount, currency, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, user_id, project_id, type, amount, currency, status, metadata, created_at
	`, userID, projectID, models.WalletTxTypeRefundDebit, -debit, currency, status, meta)
	if err != nil {
		return nil, 0, fmt.Errorf("wallet repository: debit transaction %w", err)
	}

	return &transaction, shortfall, tx.Commit()
}

// ListTransactions возвращает историю транзакций кошелька.
func (r *WalletRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	var transactions []models.WalletTransaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT * FROM wallet_transactions
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: list transactions %w", err)
	}
	return transactions, nil
}
