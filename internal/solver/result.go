package solver

import "optexec/internal/costmodel"

// Status identifies which stop condition terminated the search.
type Status string

const (
	// StatusConverged means the population cost spread stayed below the
	// tolerance for the configured number of generations.
	StatusConverged Status = "converged"

	// StatusStagnated means the best-ever cost stopped improving.
	StatusStagnated Status = "stagnated"

	// StatusMaxGenerations means the generation budget ran out first.
	StatusMaxGenerations Status = "max_generations"

	// StatusCanceled means the context was canceled between generations.
	StatusCanceled Status = "canceled"
)

// Result is the immutable outcome of one optimization run. Cost is the
// true (unpenalized) cost of the returned schedule; PenalizedCost includes
// the equality-constraint penalty the search actually minimized.
type Result struct {
	Schedule          []float64           `json:"schedule"`
	Cost              costmodel.Breakdown `json:"cost"`
	PenalizedCost     float64             `json:"penalizedCost"`
	ImprovementVsTWAP float64             `json:"improvementVsTwap"`
	Converged         bool                `json:"converged"`
	Feasible          bool                `json:"feasible"`
	Status            Status              `json:"status"`
	Generations       int                 `json:"generations"`
	Evaluations       int                 `json:"evaluations"`
	Seed              int64               `json:"seed"`
}
