package tier

import (
	"fmt"
	"sort"
	"strings"

	"clipforge/internal/config"
	"clipforge/internal/queue"
	"clipforge/internal/segments"
	"clipforge/internal/services"
)

// Plan names accepted by Resolve.
const (
	PlanFree = "free"
	PlanPaid = "paid"
)

// TransitionAuto is the caller-facing alias that resolves to a concrete
// default style at admission time, so jobs never persist "auto".
const (
	TransitionAuto    = "auto"
	TransitionDefault = "fade"
)

// Rules is the resolved entitlement set for one plan.
type Rules struct {
	Plan               string
	AllowedTransitions map[string]struct{}
	Lane               queue.Lane
	MonthlyQuota       int
	ShortsCapSeconds   int
}

// TransitionNames returns the allowed styles in sorted order for messages.
func (r Rules) TransitionNames() []string {
	names := make([]string, 0, len(r.AllowedTransitions))
	for name := range r.AllowedTransitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unlimited reports whether the plan has no monthly quota.
func (r Rules) Unlimited() bool {
	return r.MonthlyQuota == config.UnlimitedQuota
}

// Policy resolves plan names to rules. It is built once from configuration
// and never mutated afterwards.
type Policy struct {
	plans map[string]Rules
}

// NewPolicy builds the immutable plan table from configuration.
func NewPolicy(cfg config.Tiers) *Policy {
	return &Policy{plans: map[string]Rules{
		PlanFree: buildRules(PlanFree, cfg.Free),
		PlanPaid: buildRules(PlanPaid, cfg.Paid),
	}}
}

func buildRules(plan string, rules config.TierRules) Rules {
	allowed := make(map[string]struct{}, len(rules.Transitions))
	for _, name := range rules.Transitions {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			allowed[name] = struct{}{}
		}
	}
	lane := queue.LaneStandard
	if parsed, ok := queue.ParseLane(rules.QueueClass); ok {
		lane = parsed
	}
	return Rules{
		Plan:               plan,
		AllowedTransitions: allowed,
		Lane:               lane,
		MonthlyQuota:       rules.MonthlyQuota,
		ShortsCapSeconds:   rules.ShortsCapSeconds,
	}
}

// Resolve returns the rules for a plan name. Unknown plans fall back to the
// free tier so a bad value never grants paid entitlements.
func (p *Policy) Resolve(plan string) Rules {
	if rules, ok := p.plans[strings.ToLower(strings.TrimSpace(plan))]; ok {
		return rules
	}
	return p.plans[PlanFree]
}

// ResolveTransition validates a requested transition style against the plan's
// allowed set and returns the concrete style to persist. "auto" resolves to
// the default style before the check so the alias works on any plan that
// allows the default.
func (p *Policy) ResolveTransition(plan, requested string) (string, error) {
	rules := p.Resolve(plan)
	style := strings.ToLower(strings.TrimSpace(requested))
	if style == "" || style == TransitionAuto {
		style = TransitionDefault
	}
	if _, ok := rules.AllowedTransitions[style]; !ok {
		return "", services.Wrap(services.ErrUnsupportedTransition, "admission", "transition",
			fmt.Sprintf("transition %q is not available on the %s plan (allowed: %s)",
				style, rules.Plan, strings.Join(rules.TransitionNames(), ", ")), nil)
	}
	return style, nil
}

// EnsureQuota rejects a request when the user's completed highlight count for
// the current period has reached the plan's monthly quota.
func (p *Policy) EnsureQuota(plan string, completedThisMonth int) error {
	rules := p.Resolve(plan)
	if rules.Unlimited() {
		return nil
	}
	if completedThisMonth >= rules.MonthlyQuota {
		return services.Wrap(services.ErrQuotaExceeded, "admission", "quota",
			fmt.Sprintf("the %s plan allows %d highlights per month and %d are already published",
				rules.Plan, rules.MonthlyQuota, completedThisMonth), nil)
	}
	return nil
}

// EnsureShortsCap validates a short-form request against the plan's duration
// cap. The cap is inclusive: a highlight exactly at the cap is accepted.
func (p *Policy) EnsureShortsCap(plan string, planned []segments.Segment) error {
	rules := p.Resolve(plan)
	capSeconds := float64(rules.ShortsCapSeconds)
	if capSeconds <= 0 {
		return nil
	}
	total := segments.TotalDuration(planned)
	if total > capSeconds {
		return services.Wrap(services.ErrShortsTooLong, "admission", "shorts-cap",
			fmt.Sprintf("total highlight duration %.1fs exceeds the %.0fs short-form cap", total, capSeconds), nil)
	}
	return nil
}

// LaneFor returns the queue lane a plan's jobs are scheduled on.
func (p *Policy) LaneFor(plan string) queue.Lane {
	return p.Resolve(plan).Lane
}
