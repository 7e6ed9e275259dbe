package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/ledgerline/dunning/internal/clock"
	"github.com/ledgerline/dunning/internal/config"
	customerdomain "github.com/ledgerline/dunning/internal/customer/domain"
	customerrepo "github.com/ledgerline/dunning/internal/customer/repository"
	employeedomain "github.com/ledgerline/dunning/internal/employee/domain"
	employeerepo "github.com/ledgerline/dunning/internal/employee/repository"
	"github.com/ledgerline/dunning/internal/filestore"
	invoicedomain "github.com/ledgerline/dunning/internal/invoice/domain"
	invoicerepo "github.com/ledgerline/dunning/internal/invoice/repository"
	"github.com/ledgerline/dunning/internal/providers/email"
	"github.com/ledgerline/dunning/internal/providers/pdf"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingProvider struct {
	messages []email.Message
	failFor  map[string]error
}

func (p *recordingProvider) Send(ctx context.Context, msg email.Message) error {
	if len(msg.To) > 0 {
		if err, ok := p.failFor[msg.To[0]]; ok {
			return err
		}
	}
	p.messages = append(p.messages, msg)
	return nil
}

type failingInvoiceRepo struct{ err error }

func (r *failingInvoiceRepo) FindOpenOverdue(ctx context.Context, db *gorm.DB, before time.Time) ([]invoicedomain.OverdueInvoice, error) {
	return nil, r.err
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&employeedomain.Employee{},
		&invoicedomain.Invoice{},
	))
	return db
}

func newTestNotifier(t *testing.T, db *gorm.DB, now time.Time, policy config.NotifierPolicy) (*Notifier, *recordingProvider) {
	t.Helper()
	return newTestNotifierWithClock(t, db, clock.NewFakeClock(now), policy)
}

func newTestNotifierWithClock(t *testing.T, db *gorm.DB, clk *clock.FakeClock, policy config.NotifierPolicy) (*Notifier, *recordingProvider) {
	t.Helper()
	provider := &recordingProvider{failFor: map[string]error{}}
	n, err := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
		AppConfig: config.Config{
			AdminSenderID:    config.AdminSenderID,
			AdminFromAddress: "billing@corp.test",
		},
		Policy:    config.NewStaticNotifierPolicyHolder(policy),
		Invoices:  invoicerepo.Provide(),
		Customers: customerrepo.Provide(),
		Employees: employeerepo.Provide(),
		Email:     provider,
		PDF:       &pdf.NoOpProvider{},
		Files:     filestore.New(afero.NewMemMapFs(), "/attachments"),
	})
	require.NoError(t, err)
	return n, provider
}

func seedCustomer(t *testing.T, db *gorm.DB, id int64, company, email string, salesRepID *snowflake.ID) {
	t.Helper()
	require.NoError(t, db.Create(&customerdomain.Customer{
		ID:          snowflake.ID(id),
		CompanyName: company,
		Email:       email,
		SalesRepID:  salesRepID,
	}).Error)
}

func seedInvoice(t *testing.T, db *gorm.DB, id, customerID int64, number string, amountMinor int64, due time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&invoicedomain.Invoice{
		ID:            snowflake.ID(id),
		InvoiceNumber: number,
		CustomerID:    snowflake.ID(customerID),
		Status:        invoicedomain.InvoiceStatusOpen,
		AmountMinor:   amountMinor,
		Currency:      "USD",
		DueAt:         due,
	}).Error)
}

func TestRunOnceSingleCustomerSingleInvoice(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	seedCustomer(t, db, 1, "Acme Corp", "ap@acme.test", nil)
	seedInvoice(t, db, 100, 1, "INV1", 10000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	n, provider := newTestNotifier(t, db, now, config.DefaultNotifierPolicy())
	require.NoError(t, n.RunOnce(context.Background()))

	require.Len(t, provider.messages, 1)
	msg := provider.messages[0]
	assert.Equal(t, []string{"ap@acme.test"}, msg.To)
	assert.Equal(t, "Overdue Invoice Notification", msg.Subject)
	assert.Contains(t, msg.Body, "Dear Acme Corp,")
	assert.Equal(t, config.AdminSenderID, msg.SenderID)
	assert.Equal(t, "billing@corp.test", msg.From)

	require.Len(t, msg.Attachments, 1)
	att := msg.Attachments[0]
	assert.Equal(t, "text/csv", att.MIMEType)
	assert.Equal(t, "acme-corp-20240301T000000.csv", att.Filename)
	lines := strings.Split(strings.TrimRight(string(att.Content), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Invoice Number,Amount,Days Overdue", lines[0])
	assert.Equal(t, "INV1,100.00,60", lines[1])
}

func TestRunOnceNoInvoicesIsCleanNoOp(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	seedCustomer(t, db, 1, "Acme Corp", "ap@acme.test", nil)

	n, provider := newTestNotifier(t, db, now, config.DefaultNotifierPolicy())
	require.NoError(t, n.RunOnce(context.Background()))
	assert.Empty(t, provider.messages)
}

func TestRunOnceIgnoresInvoicesDueThisMonth(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	seedCustomer(t, db, 1, "Acme Corp", "ap@acme.test", nil)
	// Due after the first of the current month: not part of this run even
	// though it is already past due.
	seedInvoice(t, db, 100, 1, "INV1", 10000, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))

	n, provider := newTestNotifier(t, db, now, config.DefaultNotifierPolicy())
	require.NoError(t, n.RunOnce(context.Background()))
	assert.Empty(t, provider.messages)
}

func TestRunOnceCustomerWithoutEmailIsSkippedOthersProceed(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	seedCustomer(t, db, 1, "Acme Corp", "ap@acme.test", nil)
	seedCustomer(t, db, 2, "Globex", "", nil)
	due := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	seedInvoice(t, db, 100, 1, "INV1", 10000, due)
	seedInvoice(t, db, 101, 1, "INV2", 2500, due)
	seedInvoice(t, db, 102, 2, "INV3", 99900, due)

	n, provider := newTestNotifier(t, db, now, config.DefaultNotifierPolicy())
	require.NoError(t, n.RunOnce(context.Background()))

	require.Len(t, provider.messages, 1)
	msg := provider.messages[0]
	assert.Equal(t, []string{"ap@acme.test"}, msg.To)
	lines := strings.Split(strings.TrimRight(string(msg.Attachments[0].Content), "\n"), "\n")
	assert.Len(t, lines, 3) // header + two invoices
}

func TestRunOnceDuplicateRowsCollapseToOneCSVRow(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	seedCustomer(t, db, 1, "Acme Corp", "ap@acme.test", nil)
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Same logical invoice surfaced twice, as a joined search would.
	require.NoError(t, db.Exec(`DROP INDEX ux_invoices_number`).Error)
	seedInvoice(t, db, 100, 1, "INV1", 10000, due)
	seedInvoice(t, db, 101, 1, "INV1", 10000, due)

	n, provider := newTestNotifier(t, db, now, config.DefaultNotifierPolicy())
	require.NoError(t, n.RunOnce(context.Background()))

	require.Len(t, provider.messages, 1)
	lines := strings.Split(strings.TrimRight(string(provider.messages[0].Attachments[0].Content), "\n"), "\n")
	assert.Len(t, lines, 2) // header + one deduplicated invoice
}

func TestRunOnceSendFailureDoesNotHaltBatch(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	seedCustomer(t, db, 1, "Acme Corp", "ap@acme.test", nil)
	seedCustomer(t, db, 2, "Globex", "ar@globex.test", nil)
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedInvoice(t, db, 100, 1, "INV1", 10000, due)
	seedInvoice(t, db, 101, 2, "INV2", 5000, due)

	n, provider := newTestNotifier(t, db, now, config.DefaultNotifierPolicy())
	provider.failFor["ap@acme.test"] = errors.New("mailbox unavailable")

	require.NoError(t, n.RunOnce(context.Background()))
	require.Len(t, provider.messages, 1)
	assert.Equal(t, []string{"ar@globex.test"}, provider.messages[0].To)
}

func TestRunOnceQueryFailureIsFatal(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	db := newTestDB(t)

	n, _ := newTestNotifier(t, db, now, config.DefaultNotifierPolicy())
	queryErr := errors.New("backend unavailable")
	n.invoices = &failingInvoiceRepo{err: queryErr}

	err := n.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, queryErr)
}

func TestRunOnceUsesSalesRepAsSender(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	require.NoError(t, db.Create(&employeedomain.Employee{
		ID:    42,
		Name:  "Rae Patel",
		Email: "rep@corp.test",
	}).Error)
	seedCustomer(t, db, 1, "Acme Corp", "ap@acme.test", repID(42))
	seedInvoice(t, db, 100, 1, "INV1", 10000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	n, provider := newTestNotifier(t, db, now, config.DefaultNotifierPolicy())
	require.NoError(t, n.RunOnce(context.Background()))

	require.Len(t, provider.messages, 1)
	assert.Equal(t, int64(42), provider.messages[0].SenderID)
	assert.Equal(t, "rep@corp.test", provider.messages[0].From)
}

func TestResolveSenderFallbacks(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	require.NoError(t, db.Create(&employeedomain.Employee{ID: 42, Name: "Rae Patel", Email: "rep@corp.test"}).Error)
	require.NoError(t, db.Create(&employeedomain.Employee{ID: 43, Name: "No Mailbox"}).Error)

	n, _ := newTestNotifier(t, db, now, config.DefaultNotifierPolicy())
	ctx := context.Background()
	log := zap.NewNop()

	// No rep assigned.
	choice := n.resolveSender(ctx, nil, log)
	assert.True(t, choice.Admin)
	assert.Equal(t, config.AdminSenderID, choice.ActorID)
	assert.Equal(t, "billing@corp.test", choice.Mailbox)

	// Rep without mailbox.
	choice = n.resolveSender(ctx, repID(43), log)
	assert.True(t, choice.Admin)
	assert.Equal(t, config.AdminSenderID, choice.ActorID)

	// Unknown rep id.
	choice = n.resolveSender(ctx, repID(999), log)
	assert.True(t, choice.Admin)

	// Rep with mailbox.
	choice = n.resolveSender(ctx, repID(42), log)
	assert.False(t, choice.Admin)
	assert.Equal(t, int64(42), choice.ActorID)
	assert.Equal(t, "rep@corp.test", choice.Mailbox)
}

func TestRunOncePDFPolicyUsesPDFProvider(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	seedCustomer(t, db, 1, "Acme Corp", "ap@acme.test", nil)
	seedInvoice(t, db, 100, 1, "INV1", 10000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	policy := config.DefaultNotifierPolicy()
	policy.AttachmentFormat = config.AttachmentFormatPDF
	n, provider := newTestNotifier(t, db, now, policy)

	require.NoError(t, n.RunOnce(context.Background()))
	require.Len(t, provider.messages, 1)
	att := provider.messages[0].Attachments[0]
	assert.Equal(t, "application/pdf", att.MIMEType)
	assert.Equal(t, "acme-corp-20240301T000000.pdf", att.Filename)
}

func TestProcessCustomerUsesAdoptedSalesRep(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	require.NoError(t, db.Create(&employeedomain.Employee{
		ID:    42,
		Name:  "Rae Patel",
		Email: "rep@corp.test",
	}).Error)
	// Customer record carries no rep; the group adopted one from the query.
	seedCustomer(t, db, 1, "Acme Corp", "ap@acme.test", nil)

	n, provider := newTestNotifier(t, db, now, config.DefaultNotifierPolicy())
	group := &CustomerGroup{
		CustomerID: 1,
		SalesRepID: repID(42),
		Invoices: []InvoiceSummary{
			{InvoiceNumber: "INV1", AmountMinor: 10000, Currency: "USD", DaysOverdue: 60},
		},
	}

	require.NoError(t, n.processCustomer(context.Background(), group, now, config.DefaultNotifierPolicy(), zap.NewNop()))
	require.Len(t, provider.messages, 1)
	assert.Equal(t, int64(42), provider.messages[0].SenderID)
	assert.Equal(t, "rep@corp.test", provider.messages[0].From)
}

func TestRunOnceCutoffAdvancesWithClock(t *testing.T) {
	db := newTestDB(t)
	seedCustomer(t, db, 1, "Acme Corp", "ap@acme.test", nil)
	seedInvoice(t, db, 100, 1, "INV1", 10000, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))

	clk := clock.NewFakeClock(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))
	n, provider := newTestNotifierWithClock(t, db, clk, config.DefaultNotifierPolicy())

	// Due after February 1st: outside the February cutoff.
	require.NoError(t, n.RunOnce(context.Background()))
	assert.Empty(t, provider.messages)

	// The same invoice is picked up once the clock crosses into March.
	clk.Advance(16 * 24 * time.Hour)
	require.NoError(t, n.RunOnce(context.Background()))
	require.Len(t, provider.messages, 1)
	assert.Equal(t, []string{"ap@acme.test"}, provider.messages[0].To)
}

func TestFirstOfMonth(t *testing.T) {
	assert.Equal(t,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		FirstOfMonth(time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)),
	)
	assert.Equal(t,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		FirstOfMonth(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	)
}
