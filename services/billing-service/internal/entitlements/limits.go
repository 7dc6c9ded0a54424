package entitlements

// Limits are the plan entitlements derived from a subscription tier.
// Other services enforce these numbers from their replicas, so keep the
// shape small and stable.
type Limits struct {
	Tier                   string `json:"tier"`
	MaxServices            int32  `json:"max_services"`
	MaxMonthlyAppointments int32  `json:"max_monthly_appointments"`
}

func LimitsForTier(tier string) Limits {
	switch tier {
	case "solo":
		return Limits{
			Tier:                   "solo",
			MaxServices:            25,
			MaxMonthlyAppointments: 200,
		}
	case "studio":
		return Limits{
			Tier:                   "studio",
			MaxServices:            200,
			MaxMonthlyAppointments: 5000,
		}
	default:
		return Limits{
			Tier:                   "free",
			MaxServices:            5,
			MaxMonthlyAppointments: 20,
		}
	}
}
