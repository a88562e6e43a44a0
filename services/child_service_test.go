package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shreyasurfriend/scavenger-hunt/utils"
)

func TestChildService_RegisterChild(t *testing.T) {
	ctx := context.Background()

	t.Run("Should create a child with a zero balance", func(t *testing.T) {
		svc := NewChildService(testDB(t))
		dob := time.Now().AddDate(-8, 0, 0)

		child, err := svc.RegisterChild(ctx, "Maya", dob, "", "")
		require.NoError(t, err)
		assert.Zero(t, child.TokenBalance)
		assert.Empty(t, child.PasswordHash)
	})

	t.Run("Should hash an optional password", func(t *testing.T) {
		svc := NewChildService(testDB(t))
		dob := time.Now().AddDate(-8, 0, 0)

		child, err := svc.RegisterChild(ctx, "Theo", dob, "sekret1", "parent@example.com")
		require.NoError(t, err)
		assert.NotEqual(t, "sekret1", child.PasswordHash)
		assert.True(t, utils.CheckPasswordHash("sekret1", child.PasswordHash))
		assert.Equal(t, "parent@example.com", child.ParentEmail)
	})

	t.Run("Should reject ages outside 5-12", func(t *testing.T) {
		svc := NewChildService(testDB(t))

		_, err := svc.RegisterChild(ctx, "Too Young", time.Now().AddDate(-3, 0, 0), "", "")
		require.Error(t, err)
		_, err = svc.RegisterChild(ctx, "Too Old", time.Now().AddDate(-15, 0, 0), "", "")
		require.Error(t, err)
	})
}

func TestAgeYears(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 8, utils.AgeYears(time.Date(2018, 8, 29, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 7, utils.AgeYears(time.Date(2018, 8, 30, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 8, utils.AgeYears(time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), now))
}
