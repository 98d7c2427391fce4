package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mzDeaThly/data-spf/internal/registry/store"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("invalid credentials")
	ErrNotFound      = store.ErrNotFound
	ErrAlreadyExists = store.ErrDuplicate
)

const (
	DefaultAuditLimit = 100
	MaxAuditLimit     = 1000
	minPasswordLen    = 6
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

type AdminDeps struct {
	Vehicles    store.VehicleStore
	Permissions store.PermissionStore
	QueryLogs   store.QueryLogStore
	Admins      store.AdminStore

	// Today supplies the default recorded date for new vehicles.
	Today func() types.Date
}

// AdminService backs the operator API.
type AdminService struct {
	vehicles    store.VehicleStore
	permissions store.PermissionStore
	queryLogs   store.QueryLogStore
	admins      store.AdminStore
	today       func() types.Date
}

func NewAdminService(d AdminDeps) *AdminService {
	return &AdminService{
		vehicles:    d.Vehicles,
		permissions: d.Permissions,
		queryLogs:   d.QueryLogs,
		admins:      d.Admins,
		today:       d.Today,
	}
}

func (s *AdminService) Stats(ctx context.Context) (types.Stats, error) {
	var st types.Stats
	var err error
	if st.Vehicles, err = s.vehicles.Count(ctx); err != nil {
		return types.Stats{}, err
	}
	if st.LineUsers, err = s.permissions.Count(ctx, types.PermissionUser); err != nil {
		return types.Stats{}, err
	}
	if st.LineGroups, err = s.permissions.Count(ctx, types.PermissionGroup); err != nil {
		return types.Stats{}, err
	}
	if st.Admins, err = s.admins.Count(ctx); err != nil {
		return types.Stats{}, err
	}
	return st, nil
}

// ── Vehicles ─────────────────────────────────────────────────────────────────

func (s *AdminService) ListVehicles(ctx context.Context, q string) ([]types.Vehicle, error) {
	return s.vehicles.List(ctx, q, 500)
}

func (s *AdminService) GetVehicle(ctx context.Context, id int64) (types.Vehicle, error) {
	return s.vehicles.Get(ctx, id)
}

// CreateVehicle stores a new record. A blank recorded date means today.
func (s *AdminService) CreateVehicle(ctx context.Context, in types.VehicleInput) (types.Vehicle, error) {
	v, err := vehicleFromInput(in)
	if err != nil {
		return types.Vehicle{}, err
	}
	if v.RecordedDate == nil && s.today != nil {
		d := s.today()
		v.RecordedDate = &d
	}
	return s.vehicles.Create(ctx, v)
}

// UpdateVehicle replaces the record's fields. A blank recorded date keeps the
// stored one.
func (s *AdminService) UpdateVehicle(ctx context.Context, id int64, in types.VehicleInput) (types.Vehicle, error) {
	existing, err := s.vehicles.Get(ctx, id)
	if err != nil {
		return types.Vehicle{}, err
	}
	v, err := vehicleFromInput(in)
	if err != nil {
		return types.Vehicle{}, err
	}
	v.ID = existing.ID
	if v.RecordedDate == nil {
		v.RecordedDate = existing.RecordedDate
	}
	return s.vehicles.Update(ctx, v)
}

func (s *AdminService) DeleteVehicle(ctx context.Context, id int64) error {
	return s.vehicles.Delete(ctx, id)
}

func vehicleFromInput(in types.VehicleInput) (types.Vehicle, error) {
	v := types.Vehicle{
		LicensePlate: strings.TrimSpace(in.LicensePlate),
		Brand:        strings.TrimSpace(in.Brand),
		Model:        strings.TrimSpace(in.Model),
		OwnerName:    strings.TrimSpace(in.OwnerName),
		ContactInfo:  strings.TrimSpace(in.ContactInfo),
		Color:        strings.TrimSpace(in.Color),
		VIN:          strings.TrimSpace(in.VIN),
	}
	if v.LicensePlate == "" {
		return types.Vehicle{}, invalid("license_plate is required")
	}
	if rd := strings.TrimSpace(in.RecordedDate); rd != "" {
		d, err := types.ParseDate(rd)
		if err != nil {
			return types.Vehicle{}, invalid("recorded_date: %v", err)
		}
		v.RecordedDate = &d
	}
	return v, nil
}

// ── LINE permissions ─────────────────────────────────────────────────────────

func (s *AdminService) ListPermissions(ctx context.Context, kind types.PermissionKind) ([]types.Permission, error) {
	return s.permissions.List(ctx, kind)
}

// CreatePermission adds an entry, active unless stated otherwise.
func (s *AdminService) CreatePermission(ctx context.Context, kind types.PermissionKind, in types.PermissionInput) (types.Permission, error) {
	id := strings.TrimSpace(in.ExternalID)
	if id == "" {
		return types.Permission{}, invalid("external_id is required")
	}
	p := types.Permission{Kind: kind, ExternalID: id, IsActive: true}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if in.DisplayName != nil {
		p.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	return s.permissions.Create(ctx, p)
}

// UpdatePermission changes is_active and display_name; nil fields are kept.
func (s *AdminService) UpdatePermission(ctx context.Context, kind types.PermissionKind, id int64, in types.PermissionInput) (types.Permission, error) {
	p, err := s.permissions.Get(ctx, kind, id)
	if err != nil {
		return types.Permission{}, err
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if in.DisplayName != nil {
		p.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	return s.permissions.Update(ctx, p)
}

func (s *AdminService) DeletePermission(ctx context.Context, kind types.PermissionKind, id int64) error {
	return s.permissions.Delete(ctx, kind, id)
}

// ── Audit ────────────────────────────────────────────────────────────────────

func (s *AdminService) RecentQueries(ctx context.Context, limit int) ([]types.QueryLog, error) {
	switch {
	case limit <= 0:
		limit = DefaultAuditLimit
	case limit > MaxAuditLimit:
		limit = MaxAuditLimit
	}
	return s.queryLogs.Recent(ctx, limit)
}

// ── Operators ────────────────────────────────────────────────────────────────

func (s *AdminService) CreateAdmin(ctx context.Context, username, password string) (types.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return types.Admin{}, invalid("username is required")
	}
	if len(password) < minPasswordLen {
		return types.Admin{}, invalid("password must be at least %d characters", minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.Admin{}, fmt.Errorf("hash password: %w", err)
	}
	return s.admins.Create(ctx, types.Admin{Username: username, PasswordHash: string(hash)})
}

// Authenticate checks a username/password pair against the admins table.
func (s *AdminService) Authenticate(ctx context.Context, username, password string) (types.Admin, error) {
	a, err := s.admins.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return types.Admin{}, ErrUnauthorized
	}
	if err != nil {
		return types.Admin{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return types.Admin{}, ErrUnauthorized
	}
	return a, nil
}

// EnsureInitialAdmin creates the first operator when the table is empty.
// It reports whether an account was created.
func (s *AdminService) EnsureInitialAdmin(ctx context.Context, username, password string) (bool, error) {
	n, err := s.admins.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.CreateAdmin(ctx, username, password); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
