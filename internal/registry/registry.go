package registry

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"gorm.io/gorm"

	"loginflow/backend/internal/models"
)

// ErrInvalidURL is returned when no hostname can be parsed from a save or
// lookup URL. During registry scans a record with an unparsable stored URL
// is treated as non-matching instead of failing the scan.
var ErrInvalidURL = errors.New("cannot parse hostname from url")

// Registry persists finished recordings keyed by hostname. All writes go
// through the database before success is reported; a save that fails to
// persist never reports success.
type Registry struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// HostnameFromURL extracts the hostname the registry keys on.
func HostnameFromURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return parsed.Hostname(), nil
}

// DisplayCredentials extracts UI display copies from a recorded action list:
// the first password-kind input value and the first non-password input value.
// Replay never reads these; it drives the action list itself.
func DisplayCredentials(actions []models.Action) (username, password string) {
	for _, a := range actions {
		if a.Kind != models.ActionInput {
			continue
		}
		if a.FieldKind == models.FieldPassword {
			if password == "" {
				password = a.Value
			}
		} else if username == "" {
			username = a.Value
		}
	}
	return username, password
}

// Save persists a finished recording for the hostname of rawURL, replacing
// any prior record for that hostname entirely.
func (r *Registry) Save(rawURL string, actions []models.Action, userID uint) (*models.SiteRecord, error) {
	record, err := buildRecord(rawURL, actions, userID)
	if err != nil {
		return nil, err
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.SiteRecord
		err := tx.Where("hostname = ?", record.Hostname).First(&existing).Error
		if err == nil {
			adoptRow(record, &existing)
			return tx.Save(record).Error
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(record).Error
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist site record: %w", err)
	}

	return record, nil
}

// buildRecord assembles the replacement record for rawURL's hostname.
func buildRecord(rawURL string, actions []models.Action, userID uint) (*models.SiteRecord, error) {
	hostname, err := HostnameFromURL(rawURL)
	if err != nil {
		return nil, err
	}

	username, password := DisplayCredentials(actions)

	record := &models.SiteRecord{
		Hostname:   hostname,
		URL:        rawURL,
		RecordedAt: time.Now(),
		Username:   username,
		Password:   password,
		Status:     1,
		UserID:     userID,
	}
	if err := record.SetActions(actions); err != nil {
		return nil, fmt.Errorf("failed to encode actions: %w", err)
	}
	return record, nil
}

// adoptRow points the replacement at the row already stored for its hostname.
// With the primary key populated, gorm's Save updates that row instead of
// inserting, so a hostname never accumulates a second record and every other
// field of the replacement wins wholesale.
func adoptRow(replacement, existing *models.SiteRecord) {
	replacement.ID = existing.ID
	replacement.CreatedAt = existing.CreatedAt
}

// List returns all saved site records, most recently recorded first.
func (r *Registry) List() ([]models.SiteRecord, error) {
	var records []models.SiteRecord
	err := r.db.Where("status = ?", 1).Order("recorded_at DESC").Find(&records).Error
	return records, err
}

// FindByHostname returns the record for hostname, or nil when none exists.
func (r *Registry) FindByHostname(hostname string) (*models.SiteRecord, error) {
	var record models.SiteRecord
	err := r.db.Where("hostname = ? AND status = ?", hostname, 1).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByURL looks up the record matching rawURL's hostname.
func (r *Registry) FindByURL(rawURL string) (*models.SiteRecord, error) {
	hostname, err := HostnameFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	return r.FindByHostname(hostname)
}

// FindByID returns the record with the given ID, or nil when none exists.
func (r *Registry) FindByID(id uint) (*models.SiteRecord, error) {
	var record models.SiteRecord
	err := r.db.First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteByHostname removes the record for hostname.
func (r *Registry) DeleteByHostname(hostname string) error {
	return r.db.Where("hostname = ?", hostname).Delete(&models.SiteRecord{}).Error
}

// DeleteByID removes the record with the given ID.
func (r *Registry) DeleteByID(id uint) error {
	return r.db.Delete(&models.SiteRecord{}, id).Error
}

// UpdateCronExpression sets the keep-alive schedule for a record. An empty
// expression disables scheduling.
func (r *Registry) UpdateCronExpression(id uint, expr string) error {
	return r.db.Model(&models.SiteRecord{}).Where("id = ?", id).
		Update("cron_expression", expr).Error
}

// Scheduled returns records carrying a cron expression, for the scheduler.
func (r *Registry) Scheduled() ([]models.SiteRecord, error) {
	var records []models.SiteRecord
	err := r.db.Where("cron_expression != '' AND status = ?", 1).Find(&records).Error
	return records, err
}
