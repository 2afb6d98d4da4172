package bootstrap

import (
	"errors"
	"fmt"

	"anoa.com/runclub/internal/entity"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.Role{},
		&entity.User{},
		&entity.RunEvent{},
		&entity.Booking{},
		&entity.Post{},
		&entity.Comment{},
		&entity.Notification{},
	)
}

func SeedRoles(db *gorm.DB) error {
	defaultRoles := []entity.Role{
		{Name: entity.RoleAdmin, Description: "Club administrator"},
		{Name: entity.RoleMember, Description: "Club member"},
	}

	for _, role := range defaultRoles {
		var count int64
		if err := db.Model(&entity.Role{}).
			Where("name = ?", role.Name).
			Count(&count).Error; err != nil {
			return err
		}

		if count == 0 {
			if err := db.Create(&role).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

type AdminSeed struct {
	DisplayName string
	Phone       string
	Password    string
}

// SeedAdminUser creates the first admin account. Without a configured
// password nothing is seeded.
func SeedAdminUser(db *gorm.DB, seed AdminSeed, log logrus.FieldLogger) error {
	if seed.Phone == "" || seed.Password == "" {
		log.Info("admin seed credentials not set, skipping admin seed")
		return nil
	}

	var adminRole entity.Role
	if err := db.Where("name = ?", entity.RoleAdmin).First(&adminRole).Error; err != nil {
		return fmt.Errorf("load admin role: %w", err)
	}

	var existing entity.User
	err := db.Where("phone = ?", seed.Phone).First(&existing).Error
	if err == nil {
		log.WithField("user_id", existing.ID).Info("admin user already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	name := seed.DisplayName
	if name == "" {
		name = "admin"
	}
	phone := seed.Phone
	admin := entity.User{
		DisplayName:  name,
		Phone:        &phone,
		PasswordHash: string(hashed),
		RoleID:       &adminRole.ID,
	}
	if err := db.Omit("Role").Create(&admin).Error; err != nil {
		return err
	}

	log.WithFields(logrus.Fields{"user_id": admin.ID, "display_name": name}).Info("admin user seeded")
	return nil
}
