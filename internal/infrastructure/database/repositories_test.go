package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/testutil"
)

func TestNewRepositories(t *testing.T) {
	db := testutil.NewTestDB(t)
	repos := NewRepositories(db, zap.NewNop())

	assert.NotNil(t, repos.Customers)
	assert.NotNil(t, repos.Purchases)
	assert.NotNil(t, repos.Bookings)
	assert.NotNil(t, repos.Reviews)
	assert.NotNil(t, repos.Webhooks)

	customer, err := repos.Customers.FindOrCreate(context.Background(), "ana@example.com", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", customer.Email)
}

func TestEnumTypesCoverModelValues(t *testing.T) {
	names := map[string][]string{}
	for _, e := range enumTypes {
		names[e.name] = e.values
	}

	assert.ElementsMatch(t, []string{"basic", "gamer", "premium"}, names["plan_type"])
	assert.Contains(t, names["purchase_status"], "completed")
	assert.Contains(t, names["booking_status"], "no_show")
	assert.ElementsMatch(t, []string{"pending", "completed", "failed"}, names["webhook_status"])
}

func TestForeignKeysCoverLedgerRelations(t *testing.T) {
	ddl := make([]string, 0, len(foreignKeys))
	for _, fk := range foreignKeys {
		ddl = append(ddl, foreignKeyDDL(fk))
	}

	assert.Contains(t, ddl, "ALTER TABLE bookings ADD CONSTRAINT fk_bookings_purchase FOREIGN KEY (purchase_id) REFERENCES purchases(id) ON UPDATE RESTRICT ON DELETE RESTRICT")
	assert.Contains(t, ddl, "ALTER TABLE purchases ADD CONSTRAINT fk_purchases_customer FOREIGN KEY (customer_id) REFERENCES customers(id) ON UPDATE RESTRICT ON DELETE RESTRICT")
}
