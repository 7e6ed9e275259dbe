package notifier

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/ledgerline/dunning/internal/observability/metrics"
	"go.uber.org/zap"
)

// SenderChoice is the resolved "From" actor for a customer's notification:
// either the assigned sales representative or the administrator identity.
type SenderChoice struct {
	ActorID int64
	Mailbox string
	Admin   bool
}

func (n *Notifier) adminSender() SenderChoice {
	return SenderChoice{
		ActorID: n.cfg.AdminSenderID,
		Mailbox: n.cfg.AdminFromAddress,
		Admin:   true,
	}
}

// resolveSender picks the sales rep when one is assigned and has a mailbox,
// and falls back to the administrator identity otherwise. It never mutates
// directory records; a failed rep lookup degrades, it does not abort.
func (n *Notifier) resolveSender(ctx context.Context, salesRepID *snowflake.ID, log *zap.Logger) SenderChoice {
	if salesRepID == nil {
		obsmetrics.Notifier().IncSenderFallback(obsmetrics.SenderFallbackNoRep)
		return n.adminSender()
	}

	rep, err := n.employees.FindByID(ctx, n.db, *salesRepID)
	if err != nil {
		log.Warn("sales rep lookup failed, using administrator sender",
			zap.String("sales_rep_id", salesRepID.String()),
			zap.Error(err),
		)
		obsmetrics.Notifier().IncSenderFallback(obsmetrics.SenderFallbackLookupErr)
		return n.adminSender()
	}
	if rep == nil || strings.TrimSpace(rep.Email) == "" {
		log.Warn("sales rep has no mailbox, using administrator sender",
			zap.String("sales_rep_id", salesRepID.String()),
		)
		obsmetrics.Notifier().IncSenderFallback(obsmetrics.SenderFallbackNoRepEmail)
		return n.adminSender()
	}

	return SenderChoice{
		ActorID: int64(*salesRepID),
		Mailbox: rep.Email,
	}
}
