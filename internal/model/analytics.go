// internal/model/analytics.go
package model

import "github.com/google/uuid"

// DeliveryCounters are cumulative: an opened notification also counts as
// sent and delivered.
type DeliveryCounters struct {
	Total     int `json:"total"`
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Opened    int `json:"opened"`
	Clicked   int `json:"clicked"`
	Failed    int `json:"failed"`
}

func (c *DeliveryCounters) Add(o DeliveryCounters) {
	c.Total += o.Total
	c.Sent += o.Sent
	c.Delivered += o.Delivered
	c.Opened += o.Opened
	c.Clicked += o.Clicked
	c.Failed += o.Failed
}

// ChannelCounters is one channel's row of the breakdown.
type ChannelCounters struct {
	Channel Channel `json:"channel"`
	DeliveryCounters
}

// Rate divides safely; zero denominators yield zero.
func Rate(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

type CampaignPerformance struct {
	CampaignID   uuid.UUID      `json:"campaign_id"`
	Name         string         `json:"name"`
	Status       CampaignStatus `json:"status"`
	SentCount    int            `json:"sent_count"`
	OpenedCount  int            `json:"opened_count"`
	ClickedCount int            `json:"clicked_count"`
	OpenRate     float64        `json:"open_rate"`
	ClickRate    float64        `json:"click_rate"`
}

type AnalyticsReport struct {
	PeriodDays int                   `json:"period_days"`
	Overall    DeliveryCounters      `json:"overall"`
	Campaigns  []CampaignPerformance `json:"campaigns"`
	Channels   []ChannelCounters     `json:"channels"`
}
