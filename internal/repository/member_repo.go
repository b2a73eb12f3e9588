package repository

import (
	"database/sql"
	"fmt"

	"github.com/coopfare/engine/internal/domain"
)

// MemberRepo is the engine-side view of the tenant's member directory. The
// directory itself (enrolment, weights per period) is maintained by the
// surrounding application; the engine only reads eligible members and their
// weights.
type MemberRepo struct {
	db *sql.DB
}

func NewMemberRepo(db *sql.DB) *MemberRepo {
	return &MemberRepo{db: db}
}

// EligibleMembers returns active members of the types the cooperative model
// admits, ordered by member id for reproducible remainder assignment.
func (r *MemberRepo) EligibleMembers(tenantID string, model domain.CooperativeModel) ([]domain.Member, error) {
	rows, err := r.db.Query(
		`SELECT tenant_id, member_id, member_type, weight FROM members
		 WHERE tenant_id = ? AND active = 1 ORDER BY member_id`, tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Member
	for rows.Next() {
		var m domain.Member
		var memberType string
		if err := rows.Scan(&m.TenantID, &m.ID, &memberType, &m.Weight); err != nil {
			return nil, err
		}
		m.Type = domain.MemberType(memberType)
		if !model.Includes(m.Type) {
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Upsert writes one directory entry. Used by seeding and by the sync
// endpoint the member directory pushes to.
func (r *MemberRepo) Upsert(m domain.Member, active bool) error {
	if m.Type != domain.MemberCustomer && m.Type != domain.MemberDriver {
		return fmt.Errorf("unknown member type %q", m.Type)
	}
	_, err := r.db.Exec(
		`INSERT INTO members (tenant_id, member_id, member_type, weight, active)
		 VALUES (?,?,?,?,?)
		 ON CONFLICT(tenant_id, member_id, member_type) DO UPDATE SET
		   weight=excluded.weight, active=excluded.active`,
		m.TenantID, m.ID, string(m.Type), m.Weight, active,
	)
	return err
}

// Count returns the number of directory entries, used to decide seeding.
func (r *MemberRepo) Count() (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM members").Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}
