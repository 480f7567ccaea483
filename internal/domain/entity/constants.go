package entity

// Case status constants
const (
	CaseStatusActive = "ATIVO"
	CaseStatusClosed = "ENCERRADO"
)

// Action type constants
const (
	ActionTypeSimple   = "SIMPLES"       // single confirmation, no decision
	ActionTypeDecision = "DECISAO_SN"    // yes/no decision
	ActionTypeWait     = "AGUARDAR_DIAS" // wait a number of days
	ActionTypeChoice   = "ESCOLHA"       // one of the registered options
)

// Transition condition constants
const (
	ConditionAlways = ""
	ConditionYes    = "SIM"
	ConditionNo     = "NAO"
)

// Action instance status constants
const (
	InstanceStatusPending   = "PENDENTE"
	InstanceStatusCompleted = "CONCLUIDA"
)

// Internal event type constants
const (
	EventCaseCreated     = "CRIACAO_CASO"
	EventPhaseChanged    = "MUDANCA_FASE_WF"
	EventActionCompleted = "ACAO_WF_CONCLUIDA"
	EventProgress        = "ANDAMENTO"
	EventEmail           = "EMAIL"
	EventAttachment      = "ANEXO"
)

// Client kind constants
const (
	ClientKindPerson  = "PF"
	ClientKindCompany = "PJ"
)

// Analysis status constants
const (
	AnalysisStatusProcessing = "PROCESSANDO"
	AnalysisStatusDone       = "CONCLUIDO"
	AnalysisStatusError      = "ERRO"
)

// Analysis log level constants
const (
	LogLevelInfo    = "INFO"
	LogLevelSuccess = "SUCCESS"
	LogLevelWarning = "WARNING"
	LogLevelError   = "ERROR"
)

// IsValidCaseStatus reports whether s is a known case status.
func IsValidCaseStatus(s string) bool {
	return s == CaseStatusActive || s == CaseStatusClosed
}

// CaseStatusLabel returns the display label of a case status.
func CaseStatusLabel(s string) string {
	switch s {
	case CaseStatusActive:
		return "Ativo"
	case CaseStatusClosed:
		return "Encerrado"
	}
	return s
}

// Analysis field kinds; they only shape the extraction hints
const (
	FieldKindText        = "text"
	FieldKindDate        = "date"
	FieldKindMoney       = "money"
	FieldKindDecimal     = "decimal"
	FieldKindInteger     = "integer"
	FieldKindBoolean     = "boolean"
	FieldKindChoice      = "choice"
	FieldKindMultiChoice = "multi_choice"
)
