package model

// Outcome is the kind of result a mutating operation produced.
type Outcome int

const (
	OutcomeUnexpectedError Outcome = iota
	OutcomeCreated
	OutcomeUpdated
	OutcomeDeleted
	OutcomeNoChanges
	OutcomeNotFound
	OutcomeAlreadyExists
	OutcomeOperationFailed
	OutcomeDatabaseError
)

// Messages shown to clients. They never carry internal details.
const (
	MessageCreated            = "The record has been successfully created."
	MessageUpdated            = "The record has been successfully updated."
	MessageDeleted            = "The record has been successfully deleted."
	MessageNoChanges          = "No changes were made. The record is already up to date."
	MessageNotFound           = "The requested record was not found."
	MessageAlreadyExists      = "A record with the same value already exists."
	MessageOperationFailed    = "The operation could not be completed. Please try again or contact support if the issue persists."
	MessageDatabaseError      = "A database error occurred..."
	MessageUnexpectedError    = "An unexpected error occurred..."
	MessageInvalidCredentials = "Invalid credentials."
)

var outcomeMessages = map[Outcome]string{
	OutcomeCreated:         MessageCreated,
	OutcomeUpdated:         MessageUpdated,
	OutcomeDeleted:         MessageDeleted,
	OutcomeNoChanges:       MessageNoChanges,
	OutcomeNotFound:        MessageNotFound,
	OutcomeAlreadyExists:   MessageAlreadyExists,
	OutcomeOperationFailed: MessageOperationFailed,
	OutcomeDatabaseError:   MessageDatabaseError,
	OutcomeUnexpectedError: MessageUnexpectedError,
}

var outcomeNames = map[Outcome]string{
	OutcomeCreated:         "created",
	OutcomeUpdated:         "updated",
	OutcomeDeleted:         "deleted",
	OutcomeNoChanges:       "no_changes",
	OutcomeNotFound:        "not_found",
	OutcomeAlreadyExists:   "already_exists",
	OutcomeOperationFailed: "operation_failed",
	OutcomeDatabaseError:   "database_error",
	OutcomeUnexpectedError: "unexpected_error",
}

// Message returns the client-facing text for o.
func (o Outcome) Message() string {
	return outcomeMessages[o]
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Result is the outcome of a create, update or delete.
type Result struct {
	IsSuccess bool   `json:"isSuccess"`
	Message   string `json:"message"`

	outcome Outcome
}

// Succeeded builds a successful Result.
func Succeeded(o Outcome) Result {
	return Result{IsSuccess: true, Message: o.Message(), outcome: o}
}

// Failed builds an unsuccessful Result.
func Failed(o Outcome) Result {
	return Result{IsSuccess: false, Message: o.Message(), outcome: o}
}

// Outcome returns the kind behind the message.
func (r Result) Outcome() Outcome {
	return r.outcome
}

// AuthResult is the outcome of an authentication or identity lookup.
type AuthResult struct {
	IsSuccess bool   `json:"isSuccess"`
	Message   string `json:"message,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Username  string `json:"username,omitempty"`
	Role      string `json:"role,omitempty"`
}

// AuthSucceeded builds a successful AuthResult.
func AuthSucceeded(userID, username, role string) AuthResult {
	return AuthResult{IsSuccess: true, UserID: userID, Username: username, Role: role}
}

// AuthFailed builds an unsuccessful AuthResult carrying message only.
func AuthFailed(message string) AuthResult {
	return AuthResult{IsSuccess: false, Message: message}
}
