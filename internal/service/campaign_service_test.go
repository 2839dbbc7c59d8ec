package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/shopnotify-backend/internal/audience"
	"github.com/unclebandit/shopnotify-backend/internal/channel"
	appErrors "github.com/unclebandit/shopnotify-backend/internal/errors"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/queue"
	"github.com/unclebandit/shopnotify-backend/internal/repository/memstore"
)

func TestCreateCampaignStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tmpl := f.emailTemplate(t)

	draft, err := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "Now", TemplateID: tmpl.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if draft.Status != model.CampaignDraft {
		t.Fatalf("expected draft, got %s", draft.Status)
	}

	at := time.Now().Add(time.Hour)
	scheduled, err := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "Later", TemplateID: tmpl.ID, ScheduledAt: &at})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if scheduled.Status != model.CampaignScheduled {
		t.Fatalf("expected scheduled, got %s", scheduled.Status)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Filter: model.AudienceFilter{TargetAudience: "vip"}})
	var verr *appErrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := []string{"name", "template_id", "audience_filter.target_audience"}
	if strings.Join(verr.Fields, ",") != strings.Join(want, ",") {
		t.Fatalf("fields = %v, want %v", verr.Fields, want)
	}

	_, err = f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "x", TemplateID: uuid.New()})
	if !appErrors.IsNotFound(err) {
		t.Fatalf("expected template not found, got %v", err)
	}
}

func TestSendDraftCampaignEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tmpl := f.emailTemplate(t)
	ana := f.addCustomer("Ana", "ana@example.com")
	ben := f.addCustomer("Ben", "ben@example.com")
	inactive := f.addCustomer("Cid", "cid@example.com")
	inactive.Active = false
	f.mem.AddCustomer(inactive)

	c, _ := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "Spring", TemplateID: tmpl.ID, Filter: model.AudienceFilter{TargetAudience: model.AudienceAll}})
	res, err := f.campaigns.SendCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Status != model.CampaignSent || res.TotalRecipients != 2 || res.SentCount != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	got, _ := f.store.Campaigns.GetByID(ctx, c.ID)
	if got.Status != model.CampaignSent || got.TotalRecipients != 2 || got.SentCount != 2 || got.SentAt == nil {
		t.Fatalf("unexpected campaign %+v", got)
	}

	notifications := f.campaignNotifications(c.ID)
	if len(notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notifications))
	}
	byCustomer := map[uuid.UUID]model.Notification{}
	for _, n := range notifications {
		byCustomer[n.CustomerID] = n
	}
	for _, cust := range []model.Customer{ana, ben} {
		n, ok := byCustomer[cust.ID]
		if !ok {
			t.Fatalf("no notification for %s", cust.FirstName)
		}
		if !strings.Contains(n.Subject, cust.FirstName) {
			t.Errorf("subject %q does not contain %q", n.Subject, cust.FirstName)
		}
		if !strings.Contains(n.Content, "SPRING10") {
			t.Errorf("content %q missing template variable", n.Content)
		}
		if n.Status != model.NotificationSent || n.MessageID == "" || n.SentAt == nil {
			t.Errorf("unexpected notification %+v", n)
		}
	}
}

func TestSendTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tmpl := f.emailTemplate(t)
	f.addCustomer("Ana", "ana@example.com")

	c, _ := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "Once", TemplateID: tmpl.ID})
	if _, err := f.campaigns.SendCampaign(ctx, c.ID); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := f.campaigns.SendCampaign(ctx, c.ID); !appErrors.IsConflict(err) {
		t.Fatalf("expected conflict on second send, got %v", err)
	}
	if n := len(f.campaignNotifications(c.ID)); n != 1 {
		t.Fatalf("expected 1 notification, got %d", n)
	}
	if _, err := f.campaigns.SendCampaign(ctx, uuid.New()); !appErrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentSendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tmpl := f.emailTemplate(t)
	for i := 0; i < 5; i++ {
		f.addCustomer("C", uuid.NewString()+"@example.com")
	}
	at := time.Now().Add(-time.Minute)
	c, _ := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "Race", TemplateID: tmpl.ID, ScheduledAt: &at})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.campaigns.SendCampaign(ctx, c.ID)
		}(i)
	}
	wg.Wait()

	succeeded, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case appErrors.IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 || conflicts != 1 {
		t.Fatalf("expected one success and one conflict, got %d and %d", succeeded, conflicts)
	}
	if n := len(f.campaignNotifications(c.ID)); n != 5 {
		t.Fatalf("expected 5 notifications, got %d", n)
	}
	got, _ := f.store.Campaigns.GetByID(ctx, c.ID)
	if got.SentCount != 5 {
		t.Fatalf("expected sent_count 5, got %d", got.SentCount)
	}
	if f.sender.count() != 5 {
		t.Fatalf("expected 5 emails, got %d", f.sender.count())
	}
}

func TestRecipientFailureDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tmpl := f.emailTemplate(t)
	f.addCustomer("Ana", "ana@example.com")
	bad := f.addCustomer("Bad", "bounce@example.com")
	f.sender.failFor["bounce@example.com"] = true

	c, _ := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "Partial", TemplateID: tmpl.ID})
	res, err := f.campaigns.SendCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.SentCount != 1 || res.Failed != 1 || res.Status != model.CampaignSent {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, n := range f.campaignNotifications(c.ID) {
		if n.CustomerID == bad.ID && (n.Status != model.NotificationFailed || n.LastError == "") {
			t.Fatalf("expected failed row with error, got %+v", n)
		}
	}
}

func TestSendHonorsChannelOptOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tmpl := f.emailTemplate(t)
	optedOut := f.addCustomer("Out", "out@example.com")
	f.addCustomer("In", "in@example.com")
	pref := model.DefaultPreference(optedOut.ID)
	pref.EmailEnabled = false
	_ = f.store.Preferences.Upsert(ctx, &pref)

	c, _ := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{
		Name: "Opt", TemplateID: tmpl.ID,
		Filter: model.AudienceFilter{TargetAudience: model.AudienceAll, NotificationType: model.ChannelEmail},
	})
	res, err := f.campaigns.SendCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.TotalRecipients != 1 {
		t.Fatalf("expected 1 recipient, got %d", res.TotalRecipients)
	}
	for _, n := range f.campaignNotifications(c.ID) {
		if n.CustomerID == optedOut.ID {
			t.Fatal("opted out customer received a notification")
		}
	}
}

type failingSource struct{}

func (failingSource) FindAudience(ctx context.Context, p audience.Predicate) ([]model.Customer, error) {
	return nil, errors.New("connection reset")
}

func TestInfrastructureFailureLeavesStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tmpl := f.emailTemplate(t)
	f.campaigns.Resolver = audience.NewResolver(failingSource{}, time.Hour, nil)

	at := time.Now().Add(-time.Minute)
	c, _ := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "Down", TemplateID: tmpl.ID, ScheduledAt: &at})
	_, err := f.campaigns.SendCampaign(ctx, c.ID)
	if !appErrors.IsInfrastructure(err) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
	got, _ := f.store.Campaigns.GetByID(ctx, c.ID)
	if got.Status != model.CampaignScheduled {
		t.Fatalf("expected scheduled after failure, got %s", got.Status)
	}
}

func TestNonEmailChannelStaysQueued(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	q := queue.NewInMemoryQueue(nil)
	defer q.Close()
	f.campaigns.Queue = q

	var mu sync.Mutex
	var jobs []queue.Job
	_ = q.Subscribe(queue.TopicNotificationDispatch, func(ctx context.Context, job queue.Job) error {
		mu.Lock()
		defer mu.Unlock()
		jobs = append(jobs, job)
		return nil
	})

	tmpl, _ := f.templates.Create(ctx, TemplateInput{Name: "SMS", Channel: model.ChannelSMS, Body: "Hi {{customer.first_name}}"})
	cust := f.addCustomer("Ana", "ana@example.com")
	cust.Phone = "+15550100"
	f.mem.AddCustomer(cust)
	f.addCustomer("NoPhone", "np@example.com")

	c, _ := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "Text", TemplateID: tmpl.ID})
	res, err := f.campaigns.SendCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	q.Wait()

	if res.TotalRecipients != 1 || res.Queued != 1 || res.SentCount != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	ns := f.campaignNotifications(c.ID)
	if len(ns) != 1 || ns[0].Status != model.NotificationQueued || ns[0].Recipient != "+15550100" {
		t.Fatalf("unexpected notifications %+v", ns)
	}
	if f.sender.count() != 0 {
		t.Fatal("sms must not go through the inline sender")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(jobs) != 1 || jobs[0].NotificationID != ns[0].ID {
		t.Fatalf("expected one dispatch job, got %+v", jobs)
	}
}

func TestReconcileStaleSending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tmpl := f.emailTemplate(t)

	stale, _ := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "Stale", TemplateID: tmpl.ID})
	fresh, _ := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "Fresh", TemplateID: tmpl.ID})
	now := time.Now().UTC()
	_ = f.store.Campaigns.MarkSending(ctx, stale.ID, 3, now.Add(-2*time.Hour))
	_ = f.store.Campaigns.MarkSending(ctx, fresh.ID, 3, now)

	campaignID := stale.ID
	n := &model.Notification{CampaignID: &campaignID, CustomerID: uuid.New(), Channel: model.ChannelEmail}
	_ = f.store.Notifications.Create(ctx, n)
	_ = f.store.Notifications.ApplyStatus(ctx, model.StatusChange{NotificationID: n.ID, Status: model.NotificationSent, At: now})

	count, err := f.campaigns.ReconcileStale(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reconciled, got %d", count)
	}
	got, _ := f.store.Campaigns.GetByID(ctx, stale.ID)
	if got.Status != model.CampaignFailed || got.SentCount != 1 {
		t.Fatalf("unexpected stale campaign %+v", got)
	}
	got, _ = f.store.Campaigns.GetByID(ctx, fresh.ID)
	if got.Status != model.CampaignSending {
		t.Fatalf("fresh campaign should stay sending, got %s", got.Status)
	}
}

func TestListCampaignsPagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tmpl := f.emailTemplate(t)
	for i := 0; i < 5; i++ {
		_, _ = f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "C", TemplateID: tmpl.ID})
	}

	campaigns, pagination, err := f.campaigns.ListCampaigns(ctx, 2, 2, model.CampaignFilter{Status: model.CampaignDraft})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(campaigns) != 2 {
		t.Fatalf("expected 2 campaigns, got %d", len(campaigns))
	}
	if pagination["total_count"] != 5 || pagination["total_pages"] != 3 || pagination["page"] != 2 {
		t.Fatalf("unexpected pagination %v", pagination)
	}

	_, pagination, _ = f.campaigns.ListCampaigns(ctx, 0, 500, model.CampaignFilter{Channel: model.ChannelSMS})
	if pagination["total_count"] != 0 || pagination["page"] != 1 || pagination["page_size"] != 100 {
		t.Fatalf("unexpected pagination %v", pagination)
	}
}

func TestPersonalizedPreviewAndDetails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tmpl := f.emailTemplate(t)
	ana := f.addCustomer("Ana", "ana@example.com")
	c, _ := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "P", TemplateID: tmpl.ID})

	p, err := f.campaigns.PersonalizedPreview(ctx, c.ID, ana.ID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if p.Subject != "Hi Ana" || p.Recipient != "ana@example.com" {
		t.Fatalf("unexpected preview %+v", p)
	}
	if len(f.mem.Notifications()) != 0 {
		t.Fatal("preview must not persist notifications")
	}

	details, err := f.campaigns.GetCampaignDetailsWithStats(ctx, c.ID)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if details.Channel != model.ChannelEmail || details.Stats["total"] != 0 {
		t.Fatalf("unexpected details %+v", details)
	}

	ap, err := f.campaigns.PreviewAudience(ctx, model.AudienceFilter{})
	if err != nil {
		t.Fatalf("audience preview: %v", err)
	}
	if ap.Count != 1 || len(ap.Sample) != 1 {
		t.Fatalf("unexpected audience preview %+v", ap)
	}
}

// cancellingSender cancels the caller's context on its first send and
// rejects any send that sees a done context, like the real transports.
type cancellingSender struct {
	recordingSender
	once   sync.Once
	cancel context.CancelFunc
}

func (s *cancellingSender) Send(ctx context.Context, msg channel.Message) (string, error) {
	s.once.Do(s.cancel)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.recordingSender.Send(ctx, msg)
}

func TestCallerCancellationDoesNotFailCommittedBatch(t *testing.T) {
	f := newFixture(t)
	tmpl := f.emailTemplate(t)
	for _, name := range []string{"ana", "ben", "cid", "dee"} {
		f.addCustomer(name, name+"@example.com")
	}
	c, _ := f.campaigns.CreateCampaign(context.Background(), CreateCampaignInput{Name: "Flash", TemplateID: tmpl.ID})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender := &cancellingSender{cancel: cancel}
	resolver := audience.NewResolver(f.store.Customers, 30*24*time.Hour, nil)
	svc := NewCampaignService(f.store, resolver, sender, nil, 1, nil)

	res, err := svc.SendCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Failed != 0 || res.SentCount != 4 {
		t.Fatalf("expected 4 sent and none failed, got %+v", res)
	}
	for _, n := range f.campaignNotifications(c.ID) {
		if n.Status != model.NotificationSent {
			t.Errorf("notification %s is %s: %s", n.ID, n.Status, n.LastError)
		}
	}
	got, _ := f.store.Campaigns.GetByID(context.Background(), c.ID)
	if got.Status != model.CampaignSent || got.SentCount != 4 {
		t.Fatalf("unexpected campaign %+v", got)
	}
}

// engagingSender opens every already-sent notification before each send,
// as a fast provider webhook would during a long batch.
type engagingSender struct {
	recordingSender
	mem     *memstore.Store
	tracker *DeliveryTracker
}

func (s *engagingSender) Send(ctx context.Context, msg channel.Message) (string, error) {
	for _, n := range s.mem.Notifications() {
		if n.Status == model.NotificationSent {
			if _, err := s.tracker.RecordEvent(context.Background(), n.ID, DeliveryEvent{Status: model.NotificationOpened}); err != nil {
				return "", err
			}
		}
	}
	return s.recordingSender.Send(ctx, msg)
}

func TestSentCountIncludesEngagedNotifications(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tmpl := f.emailTemplate(t)
	for _, name := range []string{"ana", "ben", "cid"} {
		f.addCustomer(name, name+"@example.com")
	}
	c, _ := f.campaigns.CreateCampaign(ctx, CreateCampaignInput{Name: "Engaged", TemplateID: tmpl.ID})

	sender := &engagingSender{mem: f.mem, tracker: NewDeliveryTracker(f.store, nil)}
	resolver := audience.NewResolver(f.store.Customers, 30*24*time.Hour, nil)
	svc := NewCampaignService(f.store, resolver, sender, nil, 1, nil)

	res, err := svc.SendCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.SentCount != 3 {
		t.Fatalf("expected sent_count 3, got %d", res.SentCount)
	}
	got, _ := f.store.Campaigns.GetByID(ctx, c.ID)
	if got.SentCount != 3 || got.OpenedCount != 2 {
		t.Fatalf("unexpected counters sent=%d opened=%d", got.SentCount, got.OpenedCount)
	}
	if got.OpenedCount > got.SentCount {
		t.Fatal("opened_count exceeds sent_count")
	}
}
