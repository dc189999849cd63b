package plan

// Checkpoint phases. Each marks the latest fully-completed pipeline stage;
// saves are monotonic and payloads are additive across phases.
const (
	PhaseNone                    = 0
	PhaseSplitComplete           = 1
	PhaseBaseNutritionComplete   = 2
	PhaseWorkoutsComplete        = 3 // reserved
	PhaseNutritionAdjustComplete = 4 // reserved
	PhaseSupplementsComplete     = 5
	PhaseVerifiersComplete       = 6
	PhaseReasonsComplete         = 7
)

// Checkpoint is the per-job resumption record. A later phase's payload carries
// everything from earlier phases, so loading the single stored checkpoint is
// enough to resume.
type Checkpoint struct {
	Phase int `json:"phase"`

	WorkoutSplit    WorkoutSplit               `json:"workoutSplit,omitempty"`
	BaseNutrition   *BaseNutrition             `json:"baseNutrition,omitempty"`
	DailyWorkouts   map[string]*DayWorkout     `json:"dailyWorkouts,omitempty"`
	DailyNutrition  map[string]*DayNutrition   `json:"dailyNutrition,omitempty"`
	NutritionDeltas map[string]*NutritionDelta `json:"nutritionDeltas,omitempty"`
	SupplementsData *SupplementsData           `json:"supplementsData,omitempty"`
	DailyReasons    map[string]string          `json:"dailyReasons,omitempty"`
	Days            map[string]*Day            `json:"days,omitempty"`
}
