package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	dbpkg "github.com/mzDeaThly/data-spf/internal/db"
	"github.com/mzDeaThly/data-spf/internal/registry/store"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

const vehicleColumns = `id, license_plate, brand, model, owner_name, contact_info, color, vin,
  recorded_date, created_at_ms, updated_at_ms`

type VehicleStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewVehicleStore(db *sql.DB, writer *dbpkg.Worker) *VehicleStore {
	return &VehicleStore{db: db, writer: writer}
}

func (s *VehicleStore) SearchPlates(ctx context.Context, needle string, limit int) ([]types.Vehicle, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+vehicleColumns+`
FROM vehicles
WHERE `+plateExpr+` LIKE ? ESCAPE '\'
ORDER BY created_at_ms DESC, id DESC
LIMIT ?;
`, likeContains(needle), limit)
	if err != nil {
		return nil, fmt.Errorf("SearchPlates query: %w", err)
	}
	return scanVehicles(rows)
}

// List is the admin listing: raw substring over the stored plate, then the
// normalised form, newest first.
func (s *VehicleStore) List(ctx context.Context, needle string, limit int) ([]types.Vehicle, error) {
	if limit <= 0 {
		limit = 500
	}
	needle = strings.TrimSpace(needle)
	if needle == "" {
		rows, err := s.db.QueryContext(ctx, `
SELECT `+vehicleColumns+`
FROM vehicles
ORDER BY created_at_ms DESC, id DESC
LIMIT ?;
`, limit)
		if err != nil {
			return nil, fmt.Errorf("List query: %w", err)
		}
		return scanVehicles(rows)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT `+vehicleColumns+`
FROM vehicles
WHERE LOWER(license_plate) LIKE ? ESCAPE '\'
   OR `+plateExpr+` LIKE ? ESCAPE '\'
ORDER BY created_at_ms DESC, id DESC
LIMIT ?;
`, likeContains(strings.ToLower(needle)), likeContains(types.NormalizePlate(needle)), limit)
	if err != nil {
		return nil, fmt.Errorf("List query: %w", err)
	}
	return scanVehicles(rows)
}

func (s *VehicleStore) Get(ctx context.Context, id int64) (types.Vehicle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?;`, id)
	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Vehicle{}, store.ErrNotFound
	}
	if err != nil {
		return types.Vehicle{}, fmt.Errorf("Get vehicle %d: %w", id, err)
	}
	return v, nil
}

func (s *VehicleStore) Create(ctx context.Context, v types.Vehicle) (types.Vehicle, error) {
	ms := nowMs()
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		id, err := insertVehicle(ctx, tx, v, ms)
		if err != nil {
			return err
		}
		v.ID = id
		return nil
	})
	if err != nil {
		return types.Vehicle{}, err
	}
	v.CreatedAt = fromMs(ms)
	v.UpdatedAt = v.CreatedAt
	return v, nil
}

func (s *VehicleStore) CreateMany(ctx context.Context, vs []types.Vehicle) (int, error) {
	if len(vs) == 0 {
		return 0, nil
	}
	ms := nowMs()
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for i, v := range vs {
			if _, err := insertVehicle(ctx, tx, v, ms); err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(vs), nil
}

func (s *VehicleStore) Update(ctx context.Context, v types.Vehicle) (types.Vehicle, error) {
	ms := nowMs()
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE vehicles
SET license_plate = ?,
    brand = ?,
    model = ?,
    owner_name = ?,
    contact_info = ?,
    color = ?,
    vin = ?,
    recorded_date = ?,
    updated_at_ms = ?
WHERE id = ?;
`, strings.TrimSpace(v.LicensePlate), nullText(v.Brand), nullText(v.Model), nullText(v.OwnerName),
			nullText(v.ContactInfo), nullText(v.Color), nullText(v.VIN), dateArg(v.RecordedDate), ms, v.ID)
		if err != nil {
			return fmt.Errorf("Update vehicle: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return types.Vehicle{}, err
	}
	return s.Get(ctx, v.ID)
}

func (s *VehicleStore) Delete(ctx context.Context, id int64) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM vehicles WHERE id = ?;`, id)
		if err != nil {
			return fmt.Errorf("Delete vehicle: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *VehicleStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicles;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count vehicles: %w", err)
	}
	return n, nil
}

func insertVehicle(ctx context.Context, tx *sql.Tx, v types.Vehicle, ms int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
INSERT INTO vehicles(
  license_plate, brand, model, owner_name, contact_info, color, vin,
  recorded_date, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, strings.TrimSpace(v.LicensePlate), nullText(v.Brand), nullText(v.Model), nullText(v.OwnerName),
		nullText(v.ContactInfo), nullText(v.Color), nullText(v.VIN), dateArg(v.RecordedDate), ms, ms)
	if err != nil {
		return 0, fmt.Errorf("insert vehicle: %w", err)
	}
	return res.LastInsertId()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(r rowScanner) (types.Vehicle, error) {
	var v types.Vehicle
	var plate, brand, model, owner, contact, color, vin, recorded sql.NullString
	var createdMs, updatedMs int64
	if err := r.Scan(&v.ID, &plate, &brand, &model, &owner, &contact, &color, &vin,
		&recorded, &createdMs, &updatedMs); err != nil {
		return types.Vehicle{}, err
	}
	v.LicensePlate = plate.String
	v.Brand = brand.String
	v.Model = model.String
	v.OwnerName = owner.String
	v.ContactInfo = contact.String
	v.Color = color.String
	v.VIN = vin.String
	v.RecordedDate = parseNullDate(recorded)
	v.CreatedAt = fromMs(createdMs)
	v.UpdatedAt = fromMs(updatedMs)
	return v, nil
}

func scanVehicles(rows *sql.Rows) ([]types.Vehicle, error) {
	defer rows.Close()

	var out []types.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vehicles: %w", err)
	}
	return out, nil
}
