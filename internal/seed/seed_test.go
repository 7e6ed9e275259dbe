package seed

import (
	"testing"

	"github.com/glebarez/sqlite"
	customerdomain "github.com/ledgerline/dunning/internal/customer/domain"
	employeedomain "github.com/ledgerline/dunning/internal/employee/domain"
	invoicedomain "github.com/ledgerline/dunning/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEnsureDemoDataIsIdempotent(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:seeddemo?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&customerdomain.Customer{},
		&employeedomain.Employee{},
		&invoicedomain.Invoice{},
	))

	require.NoError(t, EnsureDemoData(conn))

	var invoices, customers int64
	require.NoError(t, conn.Model(&invoicedomain.Invoice{}).Count(&invoices).Error)
	require.NoError(t, conn.Model(&customerdomain.Customer{}).Count(&customers).Error)
	assert.EqualValues(t, 4, invoices)
	assert.EqualValues(t, 3, customers)

	// A second pass must not duplicate anything.
	require.NoError(t, EnsureDemoData(conn))

	var invoicesAfter int64
	require.NoError(t, conn.Model(&invoicedomain.Invoice{}).Count(&invoicesAfter).Error)
	assert.Equal(t, invoices, invoicesAfter)

	// One demo customer has no mailbox on file.
	var withoutEmail int64
	require.NoError(t, conn.Model(&customerdomain.Customer{}).
		Where("email = '' OR email IS NULL").
		Count(&withoutEmail).Error)
	assert.EqualValues(t, 1, withoutEmail)
}

func TestEnsureDemoDataRequiresHandle(t *testing.T) {
	assert.Error(t, EnsureDemoData(nil))
}
