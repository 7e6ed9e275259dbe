package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/ledgerline/dunning/internal/clock"
	"github.com/ledgerline/dunning/internal/config"
	customerdomain "github.com/ledgerline/dunning/internal/customer/domain"
	employeedomain "github.com/ledgerline/dunning/internal/employee/domain"
	"github.com/ledgerline/dunning/internal/filestore"
	invoicedomain "github.com/ledgerline/dunning/internal/invoice/domain"
	obslogger "github.com/ledgerline/dunning/internal/observability/logger"
	obsmetrics "github.com/ledgerline/dunning/internal/observability/metrics"
	"github.com/ledgerline/dunning/internal/providers/email"
	"github.com/ledgerline/dunning/internal/providers/pdf"
	"github.com/ledgerline/dunning/internal/ratelimit"
	"github.com/ledgerline/dunning/internal/report"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("notifier: missing dependency")

var bodyTemplate = template.Must(template.New("body").Parse(
	`Dear {{.Name}},

Our records show the attached invoices are past due. Please review the
attached statement and arrange payment at your earliest convenience.

If payment has already been made, kindly disregard this notice.

Kind regards,
Accounts Receivable
`))

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	AppConfig config.Config
	Policy    *config.NotifierPolicyHolder
	Invoices  invoicedomain.Repository
	Customers customerdomain.Repository
	Employees employeedomain.Repository
	Email     email.Provider
	PDF       pdf.Provider
	Files     *filestore.Store
	Locker    *ratelimit.Locker `optional:"true"`
	Config    Config            `optional:"true"`
}

// Notifier runs the overdue-invoice notification batch.
type Notifier struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	cfg       config.Config
	runCfg    Config
	policy    *config.NotifierPolicyHolder
	invoices  invoicedomain.Repository
	customers customerdomain.Repository
	employees employeedomain.Repository
	email     email.Provider
	pdf       pdf.Provider
	files     *filestore.Store
	locker    *ratelimit.Locker
}

func New(p Params) (*Notifier, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Policy == nil ||
		p.Invoices == nil || p.Customers == nil || p.Employees == nil ||
		p.Email == nil || p.PDF == nil || p.Files == nil {
		return nil, ErrInvalidConfig
	}
	return &Notifier{
		db:        p.DB,
		log:       p.Log.Named("notifier").With(zap.String("component", "notifier")),
		clock:     p.Clock,
		cfg:       p.AppConfig,
		runCfg:    p.Config.withDefaults(),
		policy:    p.Policy,
		invoices:  p.Invoices,
		customers: p.Customers,
		employees: p.Employees,
		email:     p.Email,
		pdf:       p.PDF,
		files:     p.Files,
		locker:    p.Locker,
	}, nil
}

// FirstOfMonth is the cutoff for the overdue query: invoices due strictly
// before this instant are considered overdue for the run.
func FirstOfMonth(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// RunOnce executes one full notification batch. A query failure is fatal and
// returned; every per-customer failure is logged, counted, and swallowed so
// the remaining customers are still processed.
func (n *Notifier) RunOnce(parent context.Context) error {
	start := n.clock.Now()
	runID := ulid.Make().String()
	log := obslogger.WithContext(parent, n.log).With(zap.String("run_id", runID))
	notifierMetrics := obsmetrics.Notifier()

	ctx, cancel := context.WithTimeout(parent, n.runCfg.RunTimeout)
	defer cancel()

	if n.locker != nil {
		token, ok, err := n.locker.TryLock(ctx, n.runCfg.LockKey, n.runCfg.LockTTL)
		if err != nil {
			log.Warn("run lock unavailable, proceeding unguarded", zap.Error(err))
		} else if !ok {
			log.Info("another notifier run holds the lock, skipping")
			notifierMetrics.IncRun(obsmetrics.RunResultLockSkipped)
			return nil
		} else {
			defer func() {
				if err := n.locker.Release(context.WithoutCancel(ctx), n.runCfg.LockKey, token); err != nil {
					log.Warn("run lock release failed", zap.Error(err))
				}
			}()
		}
	}

	cutoff := FirstOfMonth(start)
	rows, err := n.invoices.FindOpenOverdue(ctx, n.db, cutoff)
	if err != nil {
		log.Error("overdue invoice query failed", zap.Error(err))
		notifierMetrics.IncRun(obsmetrics.RunResultError)
		notifierMetrics.ObserveRunDuration(n.clock.Now().Sub(start))
		return fmt.Errorf("query overdue invoices: %w", err)
	}

	policy := n.policy.Get()
	groups, stats := BuildGroups(rows, start, policy.MinDaysOverdue)
	if stats.SkippedNoCustomer > 0 {
		log.Warn("invoice rows without customer reference skipped",
			zap.Int("count", stats.SkippedNoCustomer))
	}
	for i := 0; i < stats.SkippedNoCustomer; i++ {
		notifierMetrics.IncInvoiceSkipped(obsmetrics.InvoiceSkipReasonNoCustomer)
	}
	for i := 0; i < stats.SkippedDuplicate; i++ {
		notifierMetrics.IncInvoiceSkipped(obsmetrics.InvoiceSkipReasonDuplicate)
	}
	for i := 0; i < stats.SkippedBelowThreshold; i++ {
		notifierMetrics.IncInvoiceSkipped(obsmetrics.InvoiceSkipReasonBelowThreshold)
	}

	if len(groups) == 0 {
		log.Info("no overdue invoices found")
		notifierMetrics.IncRun(obsmetrics.RunResultEmpty)
		notifierMetrics.ObserveRunDuration(n.clock.Now().Sub(start))
		return nil
	}

	log.Info("processing overdue customers",
		zap.Int("customers", len(groups)),
		zap.Int("invoice_rows", len(rows)),
	)

	for _, group := range groups {
		customerLog := obslogger.WithCustomer(log, group.CustomerID.String())
		if err := n.processCustomer(ctx, group, start, policy, customerLog); err != nil {
			customerLog.Error("customer notification failed", zap.Error(err))
			notifierMetrics.IncCustomer(obsmetrics.CustomerResultFailed)
			continue
		}
		notifierMetrics.IncCustomer(obsmetrics.CustomerResultNotified)
	}

	notifierMetrics.IncRun(obsmetrics.RunResultOK)
	notifierMetrics.ObserveRunDuration(n.clock.Now().Sub(start))
	return nil
}

func (n *Notifier) processCustomer(ctx context.Context, group *CustomerGroup, now time.Time, policy config.NotifierPolicy, log *zap.Logger) error {
	customer, err := n.customers.FindByID(ctx, n.db, group.CustomerID)
	if err != nil {
		return fmt.Errorf("load customer: %w", err)
	}
	if customer == nil {
		return customerdomain.ErrNotFound
	}
	if strings.TrimSpace(customer.Email) == "" {
		return customerdomain.ErrNoEmail
	}

	group.Name = customer.DisplayName()
	group.Email = customer.Email
	if group.SalesRepID == nil {
		group.SalesRepID = customer.SalesRepID
	}

	sender := n.resolveSender(ctx, group.SalesRepID, log)

	statement := report.Statement{
		CustomerName:  group.Name,
		CustomerEmail: group.Email,
	}
	for _, inv := range group.Invoices {
		statement.Lines = append(statement.Lines, report.Line{
			InvoiceNumber: inv.InvoiceNumber,
			AmountMinor:   inv.AmountMinor,
			Currency:      inv.Currency,
			DaysOverdue:   inv.DaysOverdue,
		})
	}

	attachment, err := n.renderAttachment(ctx, statement, now, policy)
	if err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}

	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, struct{ Name string }{Name: group.Name}); err != nil {
		return fmt.Errorf("render body: %w", err)
	}

	msg := email.Message{
		SenderID:    sender.ActorID,
		From:        sender.Mailbox,
		To:          []string{group.Email},
		Subject:     policy.Subject,
		Body:        body.String(),
		Attachments: []email.Attachment{attachment},
	}
	if err := n.email.Send(ctx, msg); err != nil {
		obsmetrics.Notifier().IncEmailFailed()
		return fmt.Errorf("send email: %w", err)
	}
	obsmetrics.Notifier().IncEmailSent()

	log.Info("overdue notification sent",
		zap.String("recipient", group.Email),
		zap.Int("invoices", len(group.Invoices)),
		zap.String("attachment", attachment.Filename),
		zap.Int64("sender_id", sender.ActorID),
		zap.Bool("admin_sender", sender.Admin),
	)
	return nil
}

func (n *Notifier) renderAttachment(ctx context.Context, statement report.Statement, now time.Time, policy config.NotifierPolicy) (email.Attachment, error) {
	var (
		content  []byte
		mimeType string
		ext      string
		err      error
	)
	switch policy.AttachmentFormat {
	case config.AttachmentFormatPDF:
		content, err = n.pdf.GenerateStatement(ctx, statement)
		mimeType, ext = "application/pdf", "pdf"
	default:
		content, err = report.RenderCSV(statement, report.Options{
			IncludeCustomerColumns: policy.IncludeCustomerColumns,
		})
		mimeType, ext = "text/csv", "csv"
	}
	if err != nil {
		return email.Attachment{}, err
	}

	name := report.FileName(statement.CustomerName, now, ext)
	file, err := n.files.Create(name, mimeType, content)
	if err != nil {
		return email.Attachment{}, err
	}

	return email.Attachment{
		Filename: file.Name,
		MIMEType: file.MIMEType,
		Content:  content,
	}, nil
}

// RunForever drives RunOnce on the configured interval until the context is
// canceled. The first run starts immediately.
func (n *Notifier) RunForever(ctx context.Context) {
	ticker := time.NewTicker(n.runCfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := n.RunOnce(ctx); err != nil {
			n.log.Error("notifier run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
