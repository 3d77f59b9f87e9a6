package models

import "time"

// Channel identifies one independent delivery mechanism.
type Channel string

const (
	ChannelDashboard Channel = "dashboard"
	ChannelRealtime  Channel = "realtime"
	ChannelPush      Channel = "push"
	ChannelEmail     Channel = "email"
)

// DeliveryResult is the outcome of one channel attempt for one alert.
// Error is set only when Success is false and a causal error exists.
type DeliveryResult struct {
	Channel        Channel `json:"channel"`
	Success        bool    `json:"success"`
	RecipientCount int     `json:"recipient_count"`
	Error          string  `json:"error,omitempty"`
}

// DeliveryReport aggregates one delivery attempt for one alert.
// SuccessfulChannels + FailedChannels == len(Results) at all times;
// callers mutate Results only through Replace and then Recount.
type DeliveryReport struct {
	AlertID            string           `json:"alert_id"`
	Timestamp          time.Time        `json:"timestamp"`
	Results            []DeliveryResult `json:"results"`
	TotalRecipients    int              `json:"total_recipients"`
	SuccessfulChannels int              `json:"successful_channels"`
	FailedChannels     int              `json:"failed_channels"`
}

// Append adds a result and keeps the aggregate counters consistent.
func (r *DeliveryReport) Append(res DeliveryResult) {
	r.Results = append(r.Results, res)
	r.Recount()
}

// Replace swaps the entry for res.Channel in place. Missing channels are
// appended so a retry can never lose a result.
func (r *DeliveryReport) Replace(res DeliveryResult) {
	for i := range r.Results {
		if r.Results[i].Channel == res.Channel {
			r.Results[i] = res
			r.Recount()
			return
		}
	}
	r.Append(res)
}

// Recount recomputes the aggregate counters from Results.
func (r *DeliveryReport) Recount() {
	total, ok, failed := 0, 0, 0
	for _, res := range r.Results {
		total += res.RecipientCount
		if res.Success {
			ok++
		} else {
			failed++
		}
	}
	r.TotalRecipients = total
	r.SuccessfulChannels = ok
	r.FailedChannels = failed
}

// FailedExternalChannels lists the channels still failing, excluding
// dashboard which cannot fail.
func (r *DeliveryReport) FailedExternalChannels() []Channel {
	var chs []Channel
	for _, res := range r.Results {
		if !res.Success && res.Channel != ChannelDashboard {
			chs = append(chs, res.Channel)
		}
	}
	return chs
}
