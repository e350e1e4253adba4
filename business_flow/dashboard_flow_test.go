package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/apaysummit/summit-registration/app/dto"
	"github.com/apaysummit/summit-registration/app/services"
	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
	"github.com/apaysummit/summit-registration/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDashboardFlow(s *memory.Store) *DashboardFlowImpl {
	f := NewDashboardFlow(s.Accounts(), s.Participants(), s.Invoices(), services.NewMemoryCache()).(*DashboardFlowImpl)
	f.now = func() time.Time { return fixedNow }
	return f
}

func TestDashboardFlow_UserView(t *testing.T) {
	s := memory.New()
	flow := newTestDashboardFlow(s)
	owner := seedAccount(t, s, "wanjiku")

	paid := seedInvoice(t, s, owner, 1)
	setStatus(t, s, paid.ID, models.InvoiceStatusPaid)
	overdue := seedInvoice(t, s, owner, 2)
	setStatus(t, s, overdue.ID, models.InvoiceStatusOverdue)
	pending := seedInvoice(t, s, owner, 4)

	resp, err := flow.GetDashboard(context.Background(), &dto.DashboardRequest{AccountID: owner.ID}, nil)
	require.NoError(t, err)
	require.Nil(t, resp.Staff)
	require.NotNil(t, resp.User)

	view := resp.User
	assert.Equal(t, int64(7), view.TotalParticipants)
	assert.Equal(t, 2, view.UnpaidInvoicesCount)
	assert.Equal(t, pricing.KES(75000), view.CurrentAmountDue)

	// status order: overdue, paid, pending
	require.Len(t, view.Invoices, 3)
	assert.Equal(t, []uint{overdue.ID, paid.ID, pending.ID}, []uint{view.Invoices[0].ID, view.Invoices[1].ID, view.Invoices[2].ID})
	require.NotNil(t, view.LatestInvoice)
	assert.Equal(t, overdue.ID, view.LatestInvoice.ID)
	require.NotNil(t, view.LatestUnpaidInvoice)
	assert.Equal(t, overdue.ID, view.LatestUnpaidInvoice.ID)
}

func TestDashboardFlow_UserViewEmpty(t *testing.T) {
	s := memory.New()
	flow := newTestDashboardFlow(s)
	owner := seedAccount(t, s, "wanjiku")

	resp, err := flow.GetDashboard(context.Background(), &dto.DashboardRequest{AccountID: owner.ID}, nil)
	require.NoError(t, err)
	assert.Empty(t, resp.User.Invoices)
	assert.Nil(t, resp.User.LatestInvoice)
	assert.Nil(t, resp.User.LatestUnpaidInvoice)
	assert.True(t, resp.User.CurrentAmountDue.IsZero())
}

func TestDashboardFlow_StaffStatsAreCached(t *testing.T) {
	s := memory.New()
	flow := newTestDashboardFlow(s)
	ctx := context.Background()
	alice := seedAccount(t, s, "alice")
	bob := seedAccount(t, s, "bob")
	staff := seedAccount(t, s, "admin")

	a := seedInvoice(t, s, alice, 5)
	setStatus(t, s, a.ID, models.InvoiceStatusPaid)
	seedInvoice(t, s, bob, 1)

	resp, err := flow.GetDashboard(ctx, &dto.DashboardRequest{AccountID: staff.ID, IsStaff: true}, nil)
	require.NoError(t, err)
	require.Nil(t, resp.User)
	want := dto.StaffDashboardDTO{
		TotalUsers:      3,
		TotalInvoices:   2,
		PendingInvoices: 1,
		TotalRevenue:    pricing.KES(55000),
	}
	assert.Equal(t, want, *resp.Staff)

	seedInvoice(t, s, alice, 1)
	cached, err := flow.GetDashboard(ctx, &dto.DashboardRequest{IsStaff: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, want, *cached.Staff, "served from cache until it lapses")

	require.NoError(t, flow.cache.Delete(ctx, staffStatsCacheKey))
	fresh, err := flow.GetDashboard(ctx, &dto.DashboardRequest{IsStaff: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), fresh.Staff.TotalInvoices)
	assert.Equal(t, int64(2), fresh.Staff.PendingInvoices)
}
