package models

// UrgentStatus константы статусов срочного объявления
const (
	GigStatusSearching = "searching"
	GigStatusConfirmed = "confirmed"
	GigStatusCancelled = "cancelled"
)

// PaymentStatus константы платёжных статусов объявления
const (
	PaymentStatusAuthorized = "authorized"
	PaymentStatusEscrowed   = "escrowed"
	PaymentStatusCaptured   = "captured"
	PaymentStatusRefunded   = "refunded"
)

// ProjectStatus константы статусов проекта
const (
	ProjectStatusAwaitingAcceptance = "awaiting_acceptance"
	ProjectStatusActive             = "active"
	ProjectStatusDelivered          = "delivered"
	ProjectStatusCompleted          = "completed"
	ProjectStatusDisputed           = "disputed"
	ProjectStatusDeclined           = "declined"
	ProjectStatusCancelled          = "cancelled"
)

// ValidProjectStatuses список валидных статусов проекта
var ValidProjectStatuses = map[string]struct{}{
	ProjectStatusAwaitingAcceptance: {},
	ProjectStatusActive:             {},
	ProjectStatusDelivered:          {},
	ProjectStatusCompleted:          {},
	ProjectStatusDisputed:           {},
	ProjectStatusDeclined:           {},
	ProjectStatusCancelled:          {},
}

// TerminalProjectStatuses список терминальных статусов проекта
var TerminalProjectStatuses = map[string]struct{}{
	ProjectStatusCompleted: {},
	ProjectStatusDeclined:  {},
	ProjectStatusCancelled: {},
}

// Роли пользователей
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
