// Package seed loads development fixtures into the database.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/imec-int/monument-plwd-sub001/internal/access"
	ccDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/carecircle"
	notificationDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/notification"
	plwdDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/plwd"
	userDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/user"
)

type Fixtures struct {
	Users       []UserFixture       `yaml:"users"`
	PLWD        []PLWDFixture       `yaml:"plwd"`
	Carecircles []CarecircleFixture `yaml:"carecircles"`
}

type UserFixture struct {
	Email     string `yaml:"email"`
	Auth0ID   string `yaml:"auth0Id"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
	Role      string `yaml:"role"`
}

type PLWDFixture struct {
	Key       string         `yaml:"key"`
	Caretaker string         `yaml:"caretaker"`
	FirstName string         `yaml:"firstName"`
	LastName  string         `yaml:"lastName"`
	WatchID   string         `yaml:"watchId"`
	Address   map[string]any `yaml:"address"`
}

// CarecircleFixture adds a user to the carecircle of a PLWD. Legacy rows are
// written in the positional object form.
type CarecircleFixture struct {
	PLWD        string   `yaml:"plwd"`
	User        string   `yaml:"user"`
	Affiliation string   `yaml:"affiliation"`
	Permissions []string `yaml:"permissions"`
	Legacy      bool     `yaml:"legacy"`
}

// Result counts the rows touched by Apply.
type Result struct {
	Users       int
	PLWD        int
	Carecircles int
}

func Load(path string) (*Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixtures) Validate() error {
	emails := make(map[string]bool, len(f.Users))
	for _, u := range f.Users {
		if u.Email == "" {
			return fmt.Errorf("user without email")
		}
		if u.Role != "" {
			if _, err := access.ParseRole(u.Role); err != nil {
				return fmt.Errorf("user %s: %w", u.Email, err)
			}
		}
		emails[u.Email] = true
	}
	keys := make(map[string]bool, len(f.PLWD))
	for _, p := range f.PLWD {
		if p.Key == "" || p.FirstName == "" {
			return fmt.Errorf("plwd needs a key and a first name")
		}
		if !emails[p.Caretaker] {
			return fmt.Errorf("plwd %s: unknown caretaker %q", p.Key, p.Caretaker)
		}
		keys[p.Key] = true
	}
	for _, c := range f.Carecircles {
		if !keys[c.PLWD] {
			return fmt.Errorf("carecircle: unknown plwd %q", c.PLWD)
		}
		if !emails[c.User] {
			return fmt.Errorf("carecircle %s: unknown user %q", c.PLWD, c.User)
		}
		if !c.Legacy {
			if _, err := access.Normalize(c.Permissions); err != nil {
				return fmt.Errorf("carecircle %s/%s: %w", c.PLWD, c.User, err)
			}
		}
	}
	return nil
}

// Apply writes the fixtures in one transaction. Existing users and PLWDs are
// matched and kept, so applying the same file twice is harmless.
func Apply(ctx context.Context, db *gorm.DB, f *Fixtures, clear bool) (*Result, error) {
	res := &Result{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if clear {
			if err := clearAll(tx); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		userIDs := make(map[string]string, len(f.Users))
		for _, u := range f.Users {
			row := userDatamodel.User{
				ID:        uuid.NewString(),
				Email:     u.Email,
				FirstName: u.FirstName,
				LastName:  u.LastName,
				Role:      string(access.RoleUser),
				CreatedAt: now,
				UpdatedAt: now,
			}
			if u.Role != "" {
				row.Role = u.Role
			}
			if u.Auth0ID != "" {
				sub := u.Auth0ID
				row.Auth0ID = &sub
			}
			id, created, err := firstOrCreate(tx, &row, &userDatamodel.User{}, "email = ?", u.Email)
			if err != nil {
				return fmt.Errorf("user %s: %w", u.Email, err)
			}
			if created {
				res.Users++
			}
			userIDs[u.Email] = id
		}

		plwdIDs := make(map[string]string, len(f.PLWD))
		for _, p := range f.PLWD {
			address, err := json.Marshal(p.Address)
			if err != nil {
				return fmt.Errorf("plwd %s address: %w", p.Key, err)
			}
			if p.Address == nil {
				address = nil
			}
			caretakerID := userIDs[p.Caretaker]
			row := plwdDatamodel.PLWD{
				ID:          uuid.NewString(),
				CaretakerID: caretakerID,
				FirstName:   p.FirstName,
				LastName:    p.LastName,
				WatchID:     p.WatchID,
				Address:     address,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			id, created, err := firstOrCreate(tx, &row, &plwdDatamodel.PLWD{},
				"caretaker_id = ? AND first_name = ? AND last_name = ?", caretakerID, p.FirstName, p.LastName)
			if err != nil {
				return fmt.Errorf("plwd %s: %w", p.Key, err)
			}
			if created {
				res.PLWD++
			}
			plwdIDs[p.Key] = id
		}

		for _, c := range f.Carecircles {
			perms, err := storedPermissions(c)
			if err != nil {
				return err
			}
			row := ccDatamodel.Membership{
				ID:          uuid.NewString(),
				UserID:      userIDs[c.User],
				PLWDID:      plwdIDs[c.PLWD],
				Affiliation: c.Affiliation,
				Permissions: perms,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			upsert := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "plwd_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"affiliation", "permissions", "updated_at"}),
			}).Create(&row)
			if upsert.Error != nil {
				return fmt.Errorf("carecircle %s/%s: %w", c.PLWD, c.User, upsert.Error)
			}
			res.Carecircles += int(upsert.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type identified interface {
	*userDatamodel.User | *plwdDatamodel.PLWD
}

func idOf[T identified](row T) string {
	switch r := any(row).(type) {
	case *userDatamodel.User:
		return r.ID
	case *plwdDatamodel.PLWD:
		return r.ID
	}
	return ""
}

// firstOrCreate returns the id of the row matching query, inserting row when
// there is none.
func firstOrCreate[T identified](tx *gorm.DB, row, existing T, query string, args ...any) (string, bool, error) {
	err := tx.Where(query, args...).Take(existing).Error
	switch {
	case err == nil:
		return idOf(existing), false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", false, err
	}
	if err := tx.Create(row).Error; err != nil {
		return "", false, err
	}
	return idOf(row), true, nil
}

func storedPermissions(c CarecircleFixture) (json.RawMessage, error) {
	if c.Legacy {
		slots := make([]map[string]string, 0, len(c.Permissions))
		for _, v := range c.Permissions {
			slots = append(slots, map[string]string{"value": v})
		}
		return json.Marshal(slots)
	}
	tokens, err := access.Normalize(c.Permissions)
	if err != nil {
		return nil, err
	}
	return access.EncodeGrants(tokens)
}

func clearAll(tx *gorm.DB) error {
	for _, model := range []any{
		&notificationDatamodel.Notification{},
		&ccDatamodel.Membership{},
		&plwdDatamodel.PLWD{},
		&userDatamodel.User{},
	} {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}
