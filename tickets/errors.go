package tickets

import "errors"

var (
	ErrNotTicketChannel = errors.New("this command can only be used in ticket channels")
	ErrForbidden        = errors.New("missing required capability")
	ErrUnknownTicket    = errors.New("this ticket doesn't exist in the database")
	ErrNotClaimed       = errors.New("this ticket is not claimed")
	ErrRequesterRemoval = errors.New("you cannot remove the ticket creator")
	ErrCategoryNotFound = errors.New("ticket category not found")
	ErrClosing          = errors.New("this ticket is already being closed")
)

// AlreadyClaimedError rejects a second claim; ClaimedBy is only shown to ticket admins.
type AlreadyClaimedError struct {
	ClaimedBy string
}

func (e *AlreadyClaimedError) Error() string {
	return "this ticket is already claimed"
}
