package catalog

// The five macro states every job-lifecycle value collapses onto. New code
// only ever compares against these; historical rows keep their original
// fine-grained strings and are collapsed at read time.
const (
	JobBooked     = "booked"
	JobCheckedIn  = "checked_in"
	JobInProgress = "in_progress"
	JobInvoiced   = "invoiced"
	JobComplete   = "complete"
)

// MacroStates returns the job lifecycle states in advancement order.
func MacroStates() []string {
	return []string{JobBooked, JobCheckedIn, JobInProgress, JobInvoiced, JobComplete}
}

// Job collapses the full legacy vocabulary of the mutable jobs.status column
// onto the five macro states. The alias table is the backward-compatibility
// seam: it grew one entry per historical status string and must never shrink.
var Job = newCatalog("job",
	map[string]string{
		JobBooked:     "Booked",
		JobCheckedIn:  "Checked In",
		JobInProgress: "In Progress",
		JobInvoiced:   "Invoiced",
		JobComplete:   "Complete",
	},
	map[string]string{
		// Pre-arrival.
		"booking_requested":    JobBooked,
		"booking_confirmed":    JobBooked,
		"awaiting_arrival":     JobBooked,
		"courtesy_car_booked":  JobBooked,
		"provisional_booking":  JobBooked,
		"new_booking":          JobBooked,
		// Arrival and triage.
		"vehicle_arrived":      JobCheckedIn,
		"keys_received":        JobCheckedIn,
		"awaiting_vhc":         JobCheckedIn,
		"checked_in_waiting":   JobCheckedIn,
		"arrived":              JobCheckedIn,
		// Workshop.
		"vhc_in_progress":        JobInProgress,
		"vhc_sent":               JobInProgress,
		"vhc_sent_to_customer":   JobInProgress,
		"awaiting_authorisation": JobInProgress,
		"awaiting_authorization": JobInProgress,
		"customer_authorised":    JobInProgress,
		"parts_on_order":         JobInProgress,
		"retail_parts_on_order":  JobInProgress,
		"warranty_parts_on_order": JobInProgress,
		"parts_arrived":          JobInProgress,
		"work_in_progress":       JobInProgress,
		"workshop":               JobInProgress,
		"being_washed":           JobInProgress,
		"quality_check":          JobInProgress,
		"road_test":              JobInProgress,
		"pricing_in_progress":    JobInProgress,
		"awaiting_pricing":       JobInProgress,
		// Billing.
		"invoice_raised":       JobInvoiced,
		"invoice_sent":         JobInvoiced,
		"awaiting_payment":     JobInvoiced,
		"ready_for_collection": JobInvoiced,
		// Closed.
		"collected": JobComplete,
		"completed": JobComplete,
		"closed":    JobComplete,
		"archived":  JobComplete,
	},
)

// Tech is the technician-facing view of a job.
var Tech = newCatalog("tech",
	map[string]string{
		"not_started":    "Not Started",
		"assigned":       "Assigned",
		"working":        "Working",
		"paused":         "Paused",
		"awaiting_parts": "Awaiting Parts",
		"finished":       "Finished",
	},
	map[string]string{
		"unassigned":         "not_started",
		"allocated":          "assigned",
		"on_job":             "working",
		"working_on_vehicle": "working",
		"on_break":           "paused",
		"waiting_parts":      "awaiting_parts",
		"work_completed":     "finished",
		"done":               "finished",
	},
)

// VHC is the vehicle-health-check approval pipeline.
var VHC = newCatalog("vhc",
	map[string]string{
		"pending":              "Pending",
		"in_progress":          "In Progress",
		"completed":            "Completed",
		"sent":                 "Sent to Customer",
		"authorised":           "Authorised",
		"partially_authorised": "Partially Authorised",
		"declined":             "Declined",
	},
	map[string]string{
		"not_started":     "pending",
		"started":         "in_progress",
		"complete":        "completed",
		"sent_to_customer": "sent",
		"authorized":      "authorised",
		"partially_authorized": "partially_authorised",
		"approved":        "authorised",
		"rejected":        "declined",
	},
)

// Parts covers individual parts line items, not the job-level bucket.
var Parts = newCatalog("parts",
	map[string]string{
		"to_order":               "To Order",
		"waiting_authorisation":  "Waiting Authorisation",
		"on_order":               "On Order",
		"arrived":                "Arrived",
		"pre_picked":             "Pre-Picked",
		"fitted":                 "Fitted",
		"returned":               "Returned",
	},
	map[string]string{
		"awaiting_auth":         "waiting_authorisation",
		"waiting_authorization": "waiting_authorisation",
		"ordered":               "on_order",
		"back_order":            "on_order",
		"in_stock":              "arrived",
		"picked":                "pre_picked",
		"prepicked":             "pre_picked",
		"installed":             "fitted",
		"sent_back":             "returned",
	},
)

// Workflows is the generic per-workflow progress vocabulary used when a side
// workflow has no richer catalog of its own.
var Workflows = newCatalog("workflows",
	map[string]string{
		"pending":     "Pending",
		"in_progress": "In Progress",
		"blocked":     "Blocked",
		"completed":   "Completed",
		"skipped":     "Skipped",
	},
	map[string]string{
		"not_started": "pending",
		"started":     "in_progress",
		"on_hold":     "blocked",
		"complete":    "completed",
		"done":        "completed",
		"n_a":         "skipped",
	},
)

// Timeline holds the fine-grained sub-status identifiers recorded in the
// append-only history table. These never gate the job lifecycle; they are the
// events rendered between lifecycle changes on the job timeline.
var Timeline = newCatalog("timeline",
	map[string]string{
		"technician_started":        "Technician Started",
		"technician_paused":         "Technician Paused",
		"technician_work_completed": "Technician Work Completed",
		"vhc_started":               "VHC Started",
		"vhc_completed":             "VHC Completed",
		"vhc_sent":                  "VHC Sent to Customer",
		"customer_authorised":       "Customer Authorised",
		"customer_declined":         "Customer Declined",
		"pricing_started":           "Pricing Started",
		"pricing_completed":         "Pricing Completed",
		"parts_ordered":             "Parts Ordered",
		"parts_arrived":             "Parts Arrived",
		"vehicle_washed":            "Vehicle Washed",
		"road_tested":               "Road Tested",
		"mot_completed":             "MOT Completed",
	},
	map[string]string{
		"tech_started":        "technician_started",
		"tech_paused":         "technician_paused",
		"tech_completed":      "technician_work_completed",
		"work_complete":       "technician_work_completed",
		"vhc_complete":        "vhc_completed",
		"health_check_done":   "vhc_completed",
		"vhc_sent_to_customer": "vhc_sent",
		"authorised":          "customer_authorised",
		"customer_authorized": "customer_authorised",
		"declined":            "customer_declined",
		"priced":              "pricing_completed",
		"pricing_done":        "pricing_completed",
		"washed":              "vehicle_washed",
		"road_test_done":      "road_tested",
	},
)

// Tracking covers key and vehicle movement events.
var Tracking = newCatalog("tracking",
	map[string]string{
		"key_received":          "Key Received",
		"key_returned":          "Key Returned",
		"vehicle_on_site":       "Vehicle On Site",
		"vehicle_in_workshop":   "Vehicle In Workshop",
		"vehicle_parked":        "Vehicle Parked",
		"vehicle_off_site":      "Vehicle Off Site",
		"courtesy_car_out":      "Courtesy Car Out",
		"courtesy_car_returned": "Courtesy Car Returned",
	},
	map[string]string{
		"keys_in":       "key_received",
		"keys_out":      "key_returned",
		"on_site":       "vehicle_on_site",
		"in_workshop":   "vehicle_in_workshop",
		"parked":        "vehicle_parked",
		"off_site":      "vehicle_off_site",
		"loan_car_out":  "courtesy_car_out",
		"loan_car_back": "courtesy_car_returned",
	},
)

// Clocking is the technician time-clock vocabulary.
var Clocking = newCatalog("clocking",
	map[string]string{
		"clocked_in":  "Clocked In",
		"clocked_out": "Clocked Out",
		"on_break":    "On Break",
		"overtime":    "Overtime",
	},
	map[string]string{
		"clock_in":  "clocked_in",
		"clock_out": "clocked_out",
		"break":     "on_break",
		"ot":        "overtime",
	},
)

// Accounts keeps its original capitalized identifiers. They predate the
// snake_case convention and are stored verbatim in years of invoice rows, so
// the canonical identifiers here are the display strings themselves.
var Accounts = newCatalog("accounts",
	map[string]string{
		"Awaiting Payment": "Awaiting Payment",
		"Part Paid":        "Part Paid",
		"Paid":             "Paid",
		"Overdue":          "Overdue",
		"Written Off":      "Written Off",
	},
	map[string]string{
		"awaiting_payment": "Awaiting Payment",
		"unpaid":           "Awaiting Payment",
		"part_paid":        "Part Paid",
		"partial":          "Part Paid",
		"paid":             "Paid",
		"settled":          "Paid",
		"overdue":          "Overdue",
		"written_off":      "Written Off",
		"bad_debt":         "Written Off",
	},
)

// HR is the staff availability vocabulary.
var HR = newCatalog("hr",
	map[string]string{
		"active":   "Active",
		"on_leave": "On Leave",
		"sick":     "Sick",
		"training": "Training",
		"left":     "Left",
	},
	map[string]string{
		"available": "active",
		"holiday":   "on_leave",
		"annual_leave": "on_leave",
		"off_sick":  "sick",
		"course":    "training",
		"leaver":    "left",
	},
)

// MOT is the MOT test pipeline.
var MOT = newCatalog("mot",
	map[string]string{
		"mot_due":         "MOT Due",
		"mot_booked":      "MOT Booked",
		"mot_in_progress": "MOT In Progress",
		"mot_passed":      "MOT Passed",
		"mot_advisory":    "MOT Passed With Advisories",
		"mot_failed":      "MOT Failed",
	},
	map[string]string{
		"due":        "mot_due",
		"booked":     "mot_booked",
		"testing":    "mot_in_progress",
		"passed":     "mot_passed",
		"pass":       "mot_passed",
		"advisories": "mot_advisory",
		"failed":     "mot_failed",
		"fail":       "mot_failed",
	},
)

// Consumables is the workshop stock vocabulary.
var Consumables = newCatalog("consumables",
	map[string]string{
		"in_stock":     "In Stock",
		"low_stock":    "Low Stock",
		"on_order":     "On Order",
		"out_of_stock": "Out of Stock",
		"discontinued": "Discontinued",
	},
	map[string]string{
		"stocked":      "in_stock",
		"running_low":  "low_stock",
		"ordered":      "on_order",
		"none_left":    "out_of_stock",
		"end_of_line":  "discontinued",
	},
)

var domains = map[string]*Catalog{
	"job":         Job,
	"tech":        Tech,
	"vhc":         VHC,
	"parts":       Parts,
	"workflows":   Workflows,
	"timeline":    Timeline,
	"tracking":    Tracking,
	"clocking":    Clocking,
	"accounts":    Accounts,
	"hr":          HR,
	"mot":         MOT,
	"consumables": Consumables,
}

// Domain looks up a catalog by its domain name.
func Domain(name string) (*Catalog, bool) {
	c, ok := domains[name]
	return c, ok
}

// Domains returns every registered catalog keyed by domain name.
func Domains() map[string]*Catalog {
	out := make(map[string]*Catalog, len(domains))
	for name, c := range domains {
		out[name] = c
	}
	return out
}

// EventMeta carries the display attributes of a timeline sub-status.
type EventMeta struct {
	Department string
	Color      string
	Icon       string
}

var timelineMeta = map[string]EventMeta{
	"technician_started":        {Department: "workshop", Color: "blue", Icon: "wrench"},
	"technician_paused":         {Department: "workshop", Color: "amber", Icon: "pause"},
	"technician_work_completed": {Department: "workshop", Color: "green", Icon: "check"},
	"vhc_started":               {Department: "vhc", Color: "blue", Icon: "clipboard"},
	"vhc_completed":             {Department: "vhc", Color: "green", Icon: "clipboard-check"},
	"vhc_sent":                  {Department: "vhc", Color: "purple", Icon: "send"},
	"customer_authorised":       {Department: "front-of-house", Color: "green", Icon: "thumbs-up"},
	"customer_declined":         {Department: "front-of-house", Color: "red", Icon: "thumbs-down"},
	"pricing_started":           {Department: "accounts", Color: "blue", Icon: "calculator"},
	"pricing_completed":         {Department: "accounts", Color: "green", Icon: "calculator"},
	"parts_ordered":             {Department: "parts", Color: "amber", Icon: "package"},
	"parts_arrived":             {Department: "parts", Color: "green", Icon: "package"},
	"vehicle_washed":            {Department: "valeting", Color: "teal", Icon: "droplet"},
	"road_tested":               {Department: "workshop", Color: "blue", Icon: "road"},
	"mot_completed":             {Department: "mot", Color: "green", Icon: "shield"},
}

// TimelineEventMeta returns display attributes for a timeline identifier,
// falling back to a neutral style for identifiers without explicit metadata.
func TimelineEventMeta(id string) EventMeta {
	if meta, ok := timelineMeta[id]; ok {
		return meta
	}
	return EventMeta{Department: "workshop", Color: "grey", Icon: "circle"}
}
