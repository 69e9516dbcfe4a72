package health

import cl "github.com/xiaot623/gogo/convo/internal/classifier"

// depthRules are evaluated in order; emergencies always win.
var depthRules = []cl.Rule[IntentDepth]{
	{Name: "emergency", Result: DepthEmergency, Match: cl.AnyOf(
		cl.Words(`chest pain`, `seene me dard`, `heart attack`, `stroke`, `seizure`, `fits? aa`, `unconscious`, `behosh`,
			`can'?t breathe`, `cannot breathe`, `saans nahi`, `saans nahin`, `heavy bleeding`, `khoon (?:beh|ruk nahi)`,
			`overdose`, `swallowed`, `poisoned`, `zeher kha`, `not waking up`, `lips (?:turning )?blue`, `paralys(?:is|ed)`),
		cl.Contains(`सीने में दर्द`, `बेहोश`),
	)},
	{Name: "validation", Result: DepthValidationSeeking, Match: cl.Words(
		`is (?:it|this|that) (?:ok(?:ay)?|safe|fine|normal|harmful) (?:to|if)`,
		`(?:is that|that'?s|thats|it'?s) (?:ok(?:ay)?|fine|safe),? right`,
		`(?:ok(?:ay)?|fine|safe) na\b`, `theek hai na`, `thik hai na`, `sahi hai na`, `sahi kiya`, `chalega na`,
		`koi (?:problem|dikkat|nuksaan) to nahi`, `did i do (?:the )?right`, `am i doing (?:it )?right`,
		`should i (?:stop|continue|skip)`)},
	{Name: "remedy-seeking", Result: DepthRemedySeeking, Match: cl.Words(
		`what (?:should|can) i (?:take|eat|drink|do|apply)`, `which (?:medicine|tablet|pill|syrup|cream)`,
		`(?:suggest|recommend|tell) (?:me )?(?:a |some |any )?(?:medicine|tablet|remedy|remedies|cure|treatment)`,
		`(?:remedy|remedies|cure|medicine|treatment|ilaaj|ilaj|dawai|dawa) (?:for|batao|bataiye|bata do)`,
		`how (?:to|do i|can i) (?:treat|cure|get rid of|reduce|stop)`, `kya (?:lu|lun|loon|khau|khaun|piyu|piyun|karu|karun)`,
		`kaun ?si (?:dawai|dawa|medicine|tablet)`, `konsi (?:dawai|dawa|medicine|tablet)`, `nuskha batao`,
		`kaise theek`, `kaise thik`, `can i take`, `dose (?:of|for)`, `how much (?:should|can) i take`)},
	{Name: "remedy-mentioned", Result: DepthRemedyMentioned, Match: cl.Words(
		`haldi`, `turmeric`, `kadha`, `tulsi`, `adrak`, `ginger`, `giloy`, `ashwagandha`, `neem`, `honey`, `shahad`,
		`ajwain`, `methi`, `amla`, `aloe ?vera`, `home remed(?:y|ies)`, `gharelu`, `nuskha`, `ayurved(?:a|ic)`,
		`homeopath(?:y|ic)`, `garam pani`, `steam`, `bhaap`)},
	{Name: "education", Result: DepthEducationSeeking, Match: cl.Words(
		`what (?:is|are|causes)`, `why (?:do|does|is|am)`, `how does`, `kya hota hai`, `kyu hota hai`, `kyun hota hai`,
		`kaise hota hai`, `symptoms of`, `causes of`, `signs of`, `explain`, `meaning of`, `difference between`,
		`matlab kya`)},
	{Name: "comfort", Result: DepthComfortSeeking, Match: cl.Words(
		`scared`, `worried`, `afraid`, `darr`, `dar lag`, `tension`, `pareshan`, `ghabra`, `not feeling (?:well|good)`,
		`feeling (?:so |very )?(?:sick|weak|bad|awful|terrible)`, `tabiyat (?:kharab|theek nahi|thik nahi)`,
		`bahut (?:dard|takleef)`, `can'?t sleep`, `neend nahi`)},
	{Name: "casual", Result: DepthCasualMention, Match: cl.Always},
}

var manipulation = cl.AnyOf(
	cl.Words(`pretend (?:you are|you're|to be) (?:a |my )?doctor`, `act as (?:a |my )?doctor`, `as a doctor,? (?:tell|give)`,
		`ignore (?:your|all|the|previous) (?:rules|instructions|guidelines)`, `forget (?:your|the) rules`,
		`just (?:tell|give) me the (?:name|dose|dosage|medicine)`, `exact (?:dose|dosage|medicine name)`,
		`(?:don'?t|do not) (?:tell|ask) me to (?:see|consult|visit) a doctor`, `without (?:a |any )?doctor`,
		`doctor (?:ke )?bina`, `hypothetical(?:ly)?`, `for a (?:story|novel|friend|school project)`,
		`i am a (?:doctor|nurse|pharmacist)`, `i'?m a (?:doctor|nurse|pharmacist)`, `my doctor (?:said|says) you can`,
		`bas naam batao`, `sirf naam batao`, `no disclaimers?`),
)

var tester = cl.AnyOf(
	cl.Words(`are you (?:a |an )?(?:bot|ai|robot|real|human)`, `testing you`, `this is a test`, `just testing`,
		`test kar(?:na|raha|rahi|rahe)?`, `let'?s see if you`, `will you (?:recommend|suggest|prescribe)`,
		`would you (?:recommend|suggest|prescribe)`, `are you allowed to`, `evaluat(?:e|ing|ion)`, `benchmark`,
		`what would you say if`, `trick question`, `chatgpt`, `gemini`),
)
