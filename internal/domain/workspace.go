package domain

import "time"

// ============================================================
// Training
// ============================================================

// TrainingModule is a module with the operator's progress flags.
type TrainingModule struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	VideoURL        *string    `json:"video_url"`
	ThumbnailURL    *string    `json:"thumbnail_url"`
	OrderIndex      int        `json:"order_index"`
	RequiredStage   int        `json:"required_step"`
	DurationMinutes int        `json:"duration_minutes"`
	IsCompleted     bool       `json:"is_completed"`
	CompletedAt     *time.Time `json:"completed_at"`
	IsLocked        bool       `json:"is_locked"`
}

// TrainingOverview is GET /training/modules.
type TrainingOverview struct {
	TotalModules       int              `json:"total_modules"`
	CompletedModules   int              `json:"completed_modules"`
	AvailableModules   int              `json:"available_modules"`
	LockedModules      int              `json:"locked_modules"`
	ProgressPercentage float64          `json:"progress_percentage"`
	Modules            []TrainingModule `json:"modules"`
}

// PendingUnlocked returns the unlocked modules not yet completed.
func (o *TrainingOverview) PendingUnlocked() []TrainingModule {
	var pending []TrainingModule
	for _, m := range o.Modules {
		if !m.IsLocked && !m.IsCompleted {
			pending = append(pending, m)
		}
	}
	return pending
}

// ModuleCompletion is the acknowledgement of POST /training/modules/{id}/complete.
type ModuleCompletion struct {
	Status      string     `json:"status"`
	Message     string     `json:"message"`
	ModuleID    int64      `json:"module_id"`
	CompletedAt *time.Time `json:"completed_at"`
}

// ============================================================
// Resources
// ============================================================

// Resource categories of the arsenal.
const (
	CategoryScript   = "SCRIPT"
	CategoryPlaybook = "PLAYBOOK"
	CategoryTemplate = "TEMPLATE"
	CategoryGuide    = "GUIDE"
)

// Resource is a downloadable sales asset.
type Resource struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Description   *string `json:"description"`
	Category      string  `json:"category"`
	FileURL       string  `json:"file_url"`
	ThumbnailURL  *string `json:"thumbnail_url"`
	FileType      *string `json:"file_type"`
	OrderIndex    int     `json:"order_index"`
	DownloadCount int     `json:"download_count"`
}

// Arsenal is the categorized resource library.
type Arsenal struct {
	Script     []Resource `json:"SCRIPT"`
	Playbook   []Resource `json:"PLAYBOOK"`
	Template   []Resource `json:"TEMPLATE"`
	Guide      []Resource `json:"GUIDE"`
	TotalCount int        `json:"total_count"`
}

// CategoryStats is the per-category report of the arsenal.
type CategoryStats struct {
	Category        string `json:"category"`
	CategoryDisplay string `json:"category_display"`
	Count           int    `json:"count"`
	TotalDownloads  int    `json:"total_downloads"`
}

// Download is the acknowledgement of a registered download.
type Download struct {
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	FileURL  string  `json:"file_url"`
	FileType *string `json:"file_type"`
}

// ============================================================
// Commissions
// ============================================================

// Commission is a single commission entry.
type Commission struct {
	ID          int64      `json:"id"`
	LeadID      *int64     `json:"lead_id"`
	Amount      float64    `json:"amount"`
	Status      string     `json:"status"`
	Description *string    `json:"description"`
	PaidAt      *time.Time `json:"paid_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CommissionSummary holds totals by status.
type CommissionSummary struct {
	TotalEarned  float64      `json:"total_earned"`
	TotalPending float64      `json:"total_pending"`
	TotalPaid    float64      `json:"total_paid"`
	PendingCount int          `json:"pending_count"`
	PaidCount    int          `json:"paid_count"`
	Commissions  []Commission `json:"commissions"`
}

// StatusTotals counts and sums the commissions in one status.
type StatusTotals struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// CommissionStats is the financial performance report.
type CommissionStats struct {
	Status             string                  `json:"status"`
	TotalCommissions   int                     `json:"total_commissions"`
	ByStatus           map[string]StatusTotals `json:"by_status"`
	CurrentCommission  float64                 `json:"current_commission"`
	FinancialGoal      float64                 `json:"financial_goal"`
	ProgressPercentage float64                 `json:"progress_percentage"`
}

// CommissionTier is one row of the rule table.
type CommissionTier struct {
	Tier           int     `json:"tier"`
	Name           string  `json:"name"`
	MinSales       int     `json:"min_sales"`
	MaxSales       *int    `json:"max_sales"`
	CommissionRate float64 `json:"commission_rate"`
	Bonus          *string `json:"bonus"`
}

// CommissionRules is the commission-tier rule table.
type CommissionRules struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Tiers       []CommissionTier `json:"tiers"`
}

// TierFor returns the tier whose sales range contains sales, or nil.
func (r *CommissionRules) TierFor(sales int) *CommissionTier {
	for i := range r.Tiers {
		t := &r.Tiers[i]
		if sales >= t.MinSales && (t.MaxSales == nil || sales <= *t.MaxSales) {
			return t
		}
	}
	return nil
}

// WarRoom is the operational dashboard aggregate served by the console.
type WarRoom struct {
	Stats       *DashboardStats    `json:"stats"`
	Board       *Board             `json:"board"`
	Commissions *CommissionSummary `json:"commissions"`
	Tier        *CommissionTier    `json:"tier,omitempty"`
}
