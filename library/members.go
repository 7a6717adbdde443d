package library

import (
	"context"
	"strings"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/store"
)

// RegisterMember creates a member. Status defaults to active and the join
// date to today.
func (d *Directory) RegisterMember(ctx context.Context, m Member) (*Member, error) {
	m.ID = 0
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.ToLower(strings.TrimSpace(m.Email))
	if m.Status == "" {
		m.Status = MemberActive
	}
	if _, err := ParseMemberStatus(string(m.Status)); err != nil {
		return nil, domainerrors.Validation(err.Error())
	}
	if m.JoinDate.IsZero() {
		m.JoinDate = d.cfg.today()
	}
	if err := d.cfg.validate.Validate(m); err != nil {
		return nil, err
	}

	row, err := d.st.Insert(ctx, store.Members, m.toRow())
	if err != nil {
		return nil, storeErr(err, "register member %q", m.Email)
	}
	created, err := memberFromRow(row)
	if err != nil {
		return nil, err
	}
	d.cfg.log.Info("member registered", "member_id", created.ID, "email", created.Email)
	return &created, nil
}

// GetMember fetches one member.
func (d *Directory) GetMember(ctx context.Context, memberID int64) (*Member, error) {
	rows, err := d.st.Select(ctx, store.Members, store.Eq("member_id", memberID))
	if err != nil {
		return nil, storeErr(err, "get member %d", memberID)
	}
	if len(rows) == 0 {
		return nil, domainerrors.NotFoundf("member %d not found", memberID)
	}
	m, err := memberFromRow(rows[0])
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMembers returns every member by ascending id.
func (d *Directory) ListMembers(ctx context.Context) ([]Member, error) {
	rows, err := d.st.Select(ctx, store.Members)
	if err != nil {
		return nil, storeErr(err, "list members")
	}
	return decodeAll(rows, memberFromRow)
}

// UpdateMember applies the non-nil fields of u.
func (d *Directory) UpdateMember(ctx context.Context, memberID int64, u MemberUpdate) (*Member, error) {
	if err := d.cfg.validate.Validate(u); err != nil {
		return nil, err
	}
	set := store.Row{}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, domainerrors.Validation("name cannot be blank")
		}
		set["name"] = name
	}
	if u.Email != nil {
		set["email"] = strings.ToLower(strings.TrimSpace(*u.Email))
	}
	if u.Phone != nil {
		set["phone"] = nullable(*u.Phone)
	}
	if u.Status != nil {
		st, err := ParseMemberStatus(string(*u.Status))
		if err != nil {
			return nil, domainerrors.Validation(err.Error())
		}
		set["status"] = string(st)
	}
	if len(set) == 0 {
		return d.GetMember(ctx, memberID)
	}

	n, err := d.st.Update(ctx, store.Members, set, store.Eq("member_id", memberID))
	if err != nil {
		return nil, storeErr(err, "update member %d", memberID)
	}
	if n == 0 {
		return nil, domainerrors.NotFoundf("member %d not found", memberID)
	}
	d.cfg.log.Info("member updated", "member_id", memberID, "fields", len(set))
	return d.GetMember(ctx, memberID)
}

// SuspendMember blocks a member from borrowing. It reports false when the
// member does not exist.
func (d *Directory) SuspendMember(ctx context.Context, memberID int64) (bool, error) {
	return d.setMemberStatus(ctx, memberID, MemberSuspended)
}

// DeactivateMember marks a member inactive.
func (d *Directory) DeactivateMember(ctx context.Context, memberID int64) (bool, error) {
	return d.setMemberStatus(ctx, memberID, MemberInactive)
}

// ReactivateMember lifts a suspension or deactivation.
func (d *Directory) ReactivateMember(ctx context.Context, memberID int64) (bool, error) {
	return d.setMemberStatus(ctx, memberID, MemberActive)
}

func (d *Directory) setMemberStatus(ctx context.Context, memberID int64, status MemberStatus) (bool, error) {
	n, err := d.st.Update(ctx, store.Members, store.Row{"status": string(status)}, store.Eq("member_id", memberID))
	if err != nil {
		return false, storeErr(err, "set member %d status", memberID)
	}
	if n == 0 {
		return false, nil
	}
	d.cfg.log.Info("member status changed", "member_id", memberID, "status", status)
	return true, nil
}
