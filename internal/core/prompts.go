package core

// prompts.go holds the instruction templates sent to the model.  Keeping
// them in one file makes them easy to tweak without touching the adapters.

const (
	// clinicalPrompt takes the patient name, the raw FHIR payload and the
	// clinical notes, in that order.
	clinicalPrompt = `You are an expert medical documentation assistant (SCHOA).

Patient: %s
Raw FHIR Data: %s
Clinical Notes: %s

Task: Create a professional "After Visit Summary" and a draft "History & Physical" (H&P) note.
Format: Markdown.
Tone: Professional, Clinical, Objective.

Include:
1. Chief Complaint & HPI
2. Key Vital Signs/Observations (extracted from notes)
3. Assessment & Plan
4. Patient Instructions (friendly language for this section)

Disclaimer: Append a footer stating this is an AI-generated draft and must be verified by a physician.`

	// financialPrompt takes the period count and the JSON dataset.
	financialPrompt = `You are a Chief Financial Officer assistant for a hospital.

Data (Last %d Months): %s

Task: Provide a strategic financial analysis.
1. Identify revenue trends and expense anomalies.
2. Calculate the average Net Profit Margin.
3. Suggest 2 operational efficiency improvements based on the ratio of Payroll to Revenue.
4. Format as a concise executive brief in Markdown.`

	// searchPrompt takes the query and the JSON patient projection.
	searchPrompt = `You are a smart search engine for patient records.

Query: %q

Database: %s

Task: Return a JSON object with two fields:
1. "matchedIds": an array of patient IDs that match the query semantically.
2. "explanation": A brief sentence explaining why they matched.

Example Query: "Patients with heart issues"
Example Output: { "matchedIds": ["P-1002"], "explanation": "Selected patients with hypertension or cardiac history." }`
)

// Fixed texts shown in place of model output.
const (
	ClinicalFallback    = "Error connecting to AI service. Please check API key."
	ClinicalPlaceholder = "Failed to generate summary."

	FinancialFallback    = "Error generating financial insights."
	FinancialPlaceholder = "Failed to generate analysis."

	SearchFallback      = "AI Search unavailable."
	SearchNoExplanation = "No explanation provided."
)

// Disclaimer is shown before any panel is usable.
const Disclaimer = "SCHOA (Smart Clinical & Operational Assistant) is a prototype for educational and administrative demonstration purposes only. " +
	"AI-generated summaries and insights are NOT medical diagnoses. " +
	"This system should never be used as a substitute for professional medical advice, diagnosis, or treatment. " +
	"Always verify information with a certified healthcare professional."
