package auth

import "fmt"

// Phase is where a controller is in its lifecycle.
type Phase int

const (
	// PhaseAnonymous: no authenticated user.
	PhaseAnonymous Phase = iota
	// PhaseAuthenticating: an operation is in flight.
	PhaseAuthenticating
	// PhaseAuthenticated: a user is logged in with a fetched profile.
	PhaseAuthenticated
	// PhaseError: the last operation failed. The session is not otherwise
	// changed by the failure.
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseAnonymous:
		return "anonymous"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseError:
		return "error"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Op names a controller operation.
type Op string

const (
	OpLogin          Op = "login"
	OpRegister       Op = "register"
	OpRefresh        Op = "refresh"
	OpLogout         Op = "logout"
	OpUpdateUserInfo Op = "update_user_info"
	OpFetchProfile   Op = "fetch_profile"
	OpVerifyEmail    Op = "verify_email"
	OpForgotPassword Op = "forgot_password"
	OpResetPassword  Op = "reset_password"
)

// State is the controller's tagged state. Op is the operation that produced
// it; Err is set only in PhaseError and kept until the next operation
// starts.
type State struct {
	Phase Phase
	Op    Op
	Err   error
}

// Loading reports whether an operation is in flight. Submit buttons are
// disabled while it is true.
func (s State) Loading() bool {
	return s.Phase == PhaseAuthenticating
}

// Failed reports whether the last operation failed.
func (s State) Failed() bool {
	return s.Phase == PhaseError
}

func (s State) String() string {
	if s.Err != nil {
		return fmt.Sprintf("%s(%s): %v", s.Phase, s.Op, s.Err)
	}
	if s.Op == "" {
		return s.Phase.String()
	}
	return fmt.Sprintf("%s(%s)", s.Phase, s.Op)
}
