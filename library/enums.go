package library

import (
	"fmt"
	"strings"
)

// CopyStatus is the circulation state of one physical copy. A copy holds
// exactly one status at a time.
type CopyStatus string

const (
	CopyAvailable   CopyStatus = "available"
	CopyLoaned      CopyStatus = "loaned"
	CopyReserved    CopyStatus = "reserved"
	CopyMaintenance CopyStatus = "maintenance"
)

// ParseCopyStatus accepts the stored spelling in any case.
func ParseCopyStatus(s string) (CopyStatus, error) {
	switch st := CopyStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case CopyAvailable, CopyLoaned, CopyReserved, CopyMaintenance:
		return st, nil
	}
	return "", fmt.Errorf("unknown copy status %q", s)
}

// LoanStatus is the lifecycle state of a loan. Returned is terminal.
type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
	LoanOverdue  LoanStatus = "overdue"
)

// ParseLoanStatus accepts the stored spelling in any case.
func ParseLoanStatus(s string) (LoanStatus, error) {
	switch st := LoanStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case LoanActive, LoanReturned, LoanOverdue:
		return st, nil
	}
	return "", fmt.Errorf("unknown loan status %q", s)
}

// Open reports whether the loan still holds its copy.
func (s LoanStatus) Open() bool { return s == LoanActive || s == LoanOverdue }

// openLoanStatuses is the set that blocks deletion and re-issue.
var openLoanStatuses = []string{string(LoanActive), string(LoanOverdue)}

// MemberStatus is a member account state.
type MemberStatus string

const (
	MemberActive    MemberStatus = "active"
	MemberSuspended MemberStatus = "suspended"
	MemberInactive  MemberStatus = "inactive"
)

// ParseMemberStatus accepts the stored spelling in any case.
func ParseMemberStatus(s string) (MemberStatus, error) {
	switch st := MemberStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case MemberActive, MemberSuspended, MemberInactive:
		return st, nil
	}
	return "", fmt.Errorf("unknown member status %q", s)
}

// Role grants access levels to a User.
type Role string

const (
	RoleMember        Role = "member"
	RoleLibrarian     Role = "librarian"
	RoleAdministrator Role = "administrator"
)

// ParseRole accepts the stored spelling in any case. "admin" is accepted as
// shorthand for administrator.
func ParseRole(s string) (Role, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "admin" {
		return RoleAdministrator, nil
	}
	switch r := Role(norm); r {
	case RoleMember, RoleLibrarian, RoleAdministrator:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}
