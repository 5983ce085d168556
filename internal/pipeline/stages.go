package pipeline

// Stage identifiers, in pipeline order.
const (
	StageAnalyzeFeedback     = "analyze_feedback"
	StageGenerateFeatures    = "generate_features"
	StageEvaluateFeasibility = "evaluate_feasibility"
	StageCreateSprintPlan    = "create_sprint_plan"
	StageGenerateUpdate      = "generate_update"
)

// Agent identifiers referenced by the default stages.
const (
	AgentFeedbackAnalyst         = "feedback_analyst"
	AgentFeaturePlanner          = "feature_planner"
	AgentTechnicalEvaluator      = "technical_evaluator"
	AgentSprintPlanner           = "sprint_planner"
	AgentStakeholderCommunicator = "stakeholder_communicator"
)

// Context keys set by the orchestrator. Stage outputs are stored under the
// stage's own ID; checkpoint input is merged under the keys below.
const (
	ContextFeedbackData       = "feedback_data"
	ContextUserNotes          = "user_notes"
	ContextSelectedCategories = "selected_categories"
	ContextPriorityFocus      = "priority_focus"
)

// Markers embedded in an analysis that was enriched with checkpoint input.
const (
	markerNotes      = "USER COLLABORATION NOTES:"
	markerPriority   = "PRIORITY ADJUSTMENT:"
	markerCategories = "SELECTED CATEGORIES:"
)

// Stage declares one pipeline step: which agent runs it, what it depends on,
// and the prompt template. FocusTemplate, when set, replaces Template for
// runs carrying a priority focus; NotesTemplate replaces it when the seed
// text carries user collaboration notes.
type Stage struct {
	ID            string
	AgentID       string
	DependsOn     []string
	Template      Template
	FocusTemplate Template
	NotesTemplate Template
}

// DefaultStages returns the five-stage product evolution pipeline.
func DefaultStages() []Stage {
	return []Stage{
		{
			ID:      StageAnalyzeFeedback,
			AgentID: AgentFeedbackAnalyst,
			Template: "Analyze the following user feedback and identify key patterns, priorities, and insights:\n\n{feedback_data}\n\n" +
				"Expected Output: A detailed analysis of user feedback with key patterns, priorities, and actionable insights.",
			NotesTemplate: "Analyze the following user feedback which includes user collaboration notes. Pay special attention to the user's priorities and insights:\n\n{feedback_data}\n\n" +
				"Expected Output: A detailed analysis of user feedback with key patterns, priorities, and actionable insights that incorporates the user's collaboration notes.",
		},
		{
			ID:        StageGenerateFeatures,
			AgentID:   AgentFeaturePlanner,
			DependsOn: []string{StageAnalyzeFeedback},
			Template: "Based on the following feedback analysis, generate 3-5 feature proposals that address the most important user needs:\n\n{analyze_feedback}\n\n" +
				"Expected Output: A list of feature proposals with names, descriptions, priorities, and complexity estimates, each under a 'FEATURE N:' heading.",
			FocusTemplate: "Based on the following feedback analysis, generate 3-5 feature proposals that specifically address the user's priority to {priority_focus}:\n\n{analyze_feedback}\n\n" +
				"Expected Output: A list of feature proposals with names, descriptions, priorities, and complexity estimates, each under a 'FEATURE N:' heading, that align with the user's priority focus.",
		},
		{
			ID:        StageEvaluateFeasibility,
			AgentID:   AgentTechnicalEvaluator,
			DependsOn: []string{StageGenerateFeatures},
			Template: "Evaluate the technical feasibility of the proposed features. For each feature, assess complexity, potential challenges, and estimated effort:\n\n{generate_features}\n\n" +
				"Expected Output: A technical evaluation of each proposed feature under a 'FEATURE N:' heading, including a complexity rating from 1 to 5, potential challenges, estimated effort in person-days, and a feasibility score from 0 to 100.",
			FocusTemplate: "Evaluate the technical feasibility of the proposed features. For each feature, assess complexity, potential challenges, and estimated effort. IMPORTANT: The user has requested to {priority_focus}, so pay special attention to the technical aspects that would support this priority:\n\n{generate_features}\n\n" +
				"Expected Output: A technical evaluation of each proposed feature under a 'FEATURE N:' heading, including a complexity rating from 1 to 5, potential challenges, estimated effort in person-days, and a feasibility score from 0 to 100, with special consideration for the user's priority focus.",
		},
		{
			ID:        StageCreateSprintPlan,
			AgentID:   AgentSprintPlanner,
			DependsOn: []string{StageGenerateFeatures, StageEvaluateFeasibility},
			Template: "Create a sprint plan based on the feature proposals and technical evaluation. Organize features into sprints and create a timeline for implementation.\n\n" +
				"Feature proposals:\n{generate_features}\n\nTechnical evaluation:\n{evaluate_feasibility}\n\n" +
				"Expected Output: A sprint plan with features organized into sprints under 'SPRINT N:' headings, each with a duration in weeks, feature list, goals, and dependencies.",
			FocusTemplate: "Create a sprint plan based on the feature proposals and technical evaluation. Organize features into sprints and create a timeline for implementation. IMPORTANT: The user has requested to {priority_focus}, so prioritize scheduling features that align with this focus in earlier sprints and mark them with an asterisk.\n\n" +
				"Feature proposals:\n{generate_features}\n\nTechnical evaluation:\n{evaluate_feasibility}\n\n" +
				"Expected Output: A sprint plan with features organized into sprints under 'SPRINT N:' headings, each with a duration in weeks, feature list, goals, and dependencies, that reflects the user's priority focus.",
		},
		{
			ID:        StageGenerateUpdate,
			AgentID:   AgentStakeholderCommunicator,
			DependsOn: []string{StageAnalyzeFeedback, StageGenerateFeatures, StageEvaluateFeasibility, StageCreateSprintPlan},
			Template: "Generate a clear and compelling update for stakeholders based on the feedback analysis, feature proposals, technical evaluation, and sprint plan.\n\n" +
				"Feedback analysis:\n{analyze_feedback}\n\nFeature proposals:\n{generate_features}\n\nTechnical evaluation:\n{evaluate_feasibility}\n\nSprint plan:\n{create_sprint_plan}\n\n" +
				"Expected Output: A stakeholder update with Highlights, Metrics, Risks, Next Steps, and Resources sections that clearly communicates the planned work, its value, and expected impact.",
			FocusTemplate: "Generate a clear and compelling update for stakeholders based on the feedback analysis, feature proposals, technical evaluation, and sprint plan. IMPORTANT: The user has requested to {priority_focus}, so highlight how the planned work addresses this priority and mark priority items with an asterisk.\n\n" +
				"Feedback analysis:\n{analyze_feedback}\n\nFeature proposals:\n{generate_features}\n\nTechnical evaluation:\n{evaluate_feasibility}\n\nSprint plan:\n{create_sprint_plan}\n\n" +
				"Expected Output: A stakeholder update with Highlights, Metrics, Risks, Next Steps, Resources, and Priority Focus Summary sections, with emphasis on how the planned work addresses the user's priority focus.",
		},
	}
}
