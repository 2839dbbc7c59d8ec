package audience

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/shopnotify-backend/internal/model"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestBuildOrderAndPlaceholders(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	p := Build(model.AudienceFilter{
		TargetAudience:    model.AudienceNew,
		CustomerGroup:     "vip",
		MinPurchaseAmount: floatPtr(100),
		LastPurchaseDays:  intPtr(7),
		NotificationType:  model.ChannelSMS,
		Category:          "promotions",
	}, now, 30*24*time.Hour)

	want := []string{"active", "address", "target_audience", "customer_group", "min_purchase_amount", "last_purchase_days", "channel_opt_in", "category_opt_in"}
	if got := strings.Join(p.Names(), ","); got != strings.Join(want, ",") {
		t.Fatalf("unexpected clause order %s", got)
	}

	where, args := p.Where(3)
	if len(args) != 5 {
		t.Fatalf("expected 5 args, got %d", len(args))
	}
	for _, ph := range []string{"$3", "$4", "$5", "$6", "$7"} {
		if !strings.Contains(where, ph) {
			t.Errorf("expected placeholder %s in %q", ph, where)
		}
	}
	if strings.Contains(where, "?") {
		t.Errorf("unrendered placeholder left in %q", where)
	}
	if !strings.Contains(where, "c.phone") || !strings.Contains(where, "p.sms_enabled") {
		t.Errorf("expected sms columns in %q", where)
	}
	if since := args[0].(time.Time); !since.Equal(now.Add(-30 * 24 * time.Hour)) {
		t.Errorf("unexpected new-customer cutoff %s", since)
	}
}

func TestMatchesPreferenceFailOpen(t *testing.T) {
	p := Build(model.AudienceFilter{TargetAudience: model.AudienceAll, NotificationType: model.ChannelEmail}, time.Now(), time.Hour)

	noPref := &model.Customer{ID: uuid.New(), Active: true, Email: "a@x.io"}
	optedOut := &model.Customer{ID: uuid.New(), Active: true, Email: "b@x.io", Preference: &model.Preference{EmailEnabled: false, SMSEnabled: true}}
	noAddress := &model.Customer{ID: uuid.New(), Active: true}
	inactive := &model.Customer{ID: uuid.New(), Active: false, Email: "c@x.io"}

	if !p.Matches(noPref) {
		t.Errorf("customer without preference row must be included")
	}
	if p.Matches(optedOut) {
		t.Errorf("customer with email disabled must be excluded")
	}
	if p.Matches(noAddress) {
		t.Errorf("customer without email must be excluded")
	}
	if p.Matches(inactive) {
		t.Errorf("inactive customer must be excluded")
	}
}

func TestMatchesTargetAudiences(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, 0, -3)
	c := &model.Customer{Active: true, Email: "x@y.z", TotalSpent: 50, CreatedAt: now.AddDate(0, -6, 0), LastPurchaseAt: &recent}

	cases := []struct {
		name   string
		filter model.AudienceFilter
		want   bool
	}{
		{"returning", model.AudienceFilter{TargetAudience: model.AudienceReturning}, true},
		{"loyalty", model.AudienceFilter{TargetAudience: model.AudienceLoyalty}, false},
		{"new", model.AudienceFilter{TargetAudience: model.AudienceNew}, false},
		{"min purchase met", model.AudienceFilter{MinPurchaseAmount: floatPtr(50)}, true},
		{"min purchase missed", model.AudienceFilter{MinPurchaseAmount: floatPtr(51)}, false},
		{"last purchase in window", model.AudienceFilter{LastPurchaseDays: intPtr(7)}, true},
		{"last purchase outside window", model.AudienceFilter{LastPurchaseDays: intPtr(2)}, false},
		{"group mismatch", model.AudienceFilter{CustomerGroup: "vip"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Build(tc.filter, now, 30*24*time.Hour)
			if got := p.Matches(c); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestCategoryOptOut(t *testing.T) {
	p := Build(model.AudienceFilter{Category: "promotions"}, time.Now(), time.Hour)
	c := &model.Customer{Active: true, Email: "x@y.z", Preference: &model.Preference{EmailEnabled: true, Categories: model.Categories{"promotions": false}}}
	if p.Matches(c) {
		t.Errorf("expected category opt-out to exclude customer")
	}
	c.Preference.Categories = model.Categories{"news": false}
	if !p.Matches(c) {
		t.Errorf("unrelated category must not exclude customer")
	}
}
