package testing

import (
	"fmt"
	"math/rand"

	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plain password of every account created by the fixtures
const TestPassword = "TestPass123!"

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestAccount creates an active account with a verified profile
func (tf *TestFixtures) CreateTestAccount(isStaff bool) (*models.Account, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	suffix := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)
	account := &models.Account{
		Username:     "registrant_" + suffix,
		Email:        fmt.Sprintf("registrant.%s@example.co.ke", suffix),
		PasswordHash: string(hashedPassword),
		IsStaff:      isStaff,
		IsActive:     utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	profile := models.NewProfile(account.ID, "Apay Ltd", "Nairobi", "+254712"+suffix[:6], "", utils.UTCNow())
	profile.MarkEmailVerified()
	if err := tf.DB.DB.Create(profile).Error; err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	account.Profile = profile

	return account, nil
}

// CreateTestParticipants stores n participants owned by accountID
func (tf *TestFixtures) CreateTestParticipants(accountID uint, n int) ([]*models.Participant, error) {
	participants := make([]*models.Participant, 0, n)
	for i := range n {
		participants = append(participants, &models.Participant{
			AccountID: accountID,
			Name:      fmt.Sprintf("Participant %d", i+1),
			Email:     fmt.Sprintf("participant%d.%d@example.co.ke", i+1, accountID),
			Phone:     "0712345678",
		})
	}
	if n == 0 {
		return participants, nil
	}
	if err := tf.DB.DB.Create(&participants).Error; err != nil {
		return nil, fmt.Errorf("failed to create participants: %w", err)
	}
	return participants, nil
}
