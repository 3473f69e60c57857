package content

// DraftSystemPrompt frames the model for the first pass over meeting notes.
const DraftSystemPrompt = "You produce structured, accurate work outputs and avoid hallucinating specifics."

// DraftPrompt asks for an editable action plan.
const DraftPrompt = `You are an expert project manager.

From the following meeting notes, create a DRAFT action plan that includes:

1. Clear action items
2. An owner for each item (use "Unassigned" if unclear)
3. A realistic deadline for each item
4. A simple execution schedule broken into steps
5. Any risks, blockers, or missing information

Assume this is a draft that the user will review before finalizing.
Write clearly, professionally, and concisely.`

// PolishSystemPrompt keeps the second pass from adding content.
const PolishSystemPrompt = "You are a careful formatter. Do not add facts."

// PolishPrompt formats a user-edited action plan for delivery.
const PolishPrompt = `You are an expert project manager.

You will receive an action plan that a user has reviewed and edited. Your job:
- keep the same meaning
- ensure it is professionally formatted
- ensure deadlines and schedules read clearly
- do NOT invent owners or deadlines that are missing; keep "Unassigned" if present.

Return clean markdown suitable for email.`

const (
	notesHeading = "MEETING NOTES:"
	planHeading  = "ACTION PLAN (USER-EDITED):"
)
