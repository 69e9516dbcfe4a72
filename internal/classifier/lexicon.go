package classifier

// Rule tables. Order is priority: the first matching rule wins.

var intentRules = []Rule[Intent]{
	{Name: "greeting", Result: IntentGreeting, Match: Pattern(
		`^(?:hi+|hello+|hey+|helo|namaste|namaskar|pranam|hola|yo|sup|gm|good (?:morning|afternoon|evening|night)|kaise ho|kya haal|salaam|ram ram)\b`)},
	{Name: "emotional", Result: IntentEmotional, Match: AnyOf(
		Words(`sad`, `upset`, `lonely`, `depressed`, `anxious`, `stressed`, `worried`, `heartbroken`, `scared`,
			`feel(?:ing)? (?:low|down|bad|empty|lost)`, `dukhi`, `udaas`, `udas`, `pareshan`, `tension`, `akela`, `akeli`,
			`rona aa`, `dil toot`, `darr lag`, `mann nahi`, `man nahi`),
	)},
	{Name: "task", Result: IntentTask, Match: Words(
		`remind(?: me)?`, `schedule`, `set (?:an? )?(?:alarm|reminder|timer)`, `book (?:a|an|my)`, `make (?:a|me a) (?:list|plan)`,
		`write (?:an? |my )?(?:email|mail|letter|message|application)`, `draft`, `translate`, `summari[sz]e`,
		`plan (?:my|a|an)`, `bana do`, `likh do`, `kar do`, `bhej do`, `yaad dila`)},
	{Name: "learning", Result: IntentLearning, Match: Words(
		`explain`, `teach me`, `meaning of`, `learn`, `samjhao`, `samjha do`, `samjhaiye`, `how does`, `kya hota hai`,
		`matlab`, `concept`, `study`, `exam`, `chapter`, `difference between`)},
	{Name: "technical", Result: IntentTechnical, Match: Words(
		`code`, `coding`, `bug`, `error`, `python`, `javascript`, `java`, `golang`, `api`, `database`, `sql`, `server`,
		`deploy`, `compile`, `function`, `algorithm`, `laptop`, `wifi`, `install`, `software`, `app`, `excel`)},
	{Name: "creative", Result: IntentCreative, Match: Words(
		`poem`, `story`, `shayari`, `song`, `lyrics`, `joke`, `kavita`, `kahani`, `creative`, `imagine`, `rap`, `caption`)},
	{Name: "question", Result: IntentQuestion, Match: AnyOf(
		Pattern(`\?\s*$`),
		Pattern(`^(?:what|why|how|when|where|who|which|is|are|can|could|should|do|does|kya|kyu|kyun|kaise|kab|kahan|kaun|kitna|kitne)\b`),
	)},
	{Name: "casual", Result: IntentCasual, Match: Always},
}

var safetyRules = []Rule[SafetyLevel]{
	{Name: "dangerous", Result: SafetyDangerous, Match: AnyOf(
		Words(`bombs?`, `explosives?`, `ied`, `grenade`, `ransomware`, `terroris[mt]`,
			`make (?:a )?(?:gun|weapon|poison)`, `(?:kill|murder|stab|shoot) (?:someone|somebody|him|her|them|my \w+)`,
			`hack (?:into|someone|somebody)`, `poison (?:someone|somebody|him|her|them)`,
			`zeher de`, `hathiyar`, `maar (?:dalu|daalu|dalna|daalna|do)`, `goli maar`, `child porn`),
		Contains(`बम`),
	)},
	{Name: "escalate", Result: SafetyEscalate, Match: AnyOf(
		Words(`suicid(?:e|al)`, `kill myself`, `end my life`, `want to die`, `wanna die`, `self[- ]harm`, `cut myself`,
			`no reason to live`, `khudkushi`, `aatmhatya`, `atmahatya`, `marna chaht[ai]`, `mar jaana chaht[ai]`,
			`jeena nahi`, `jina nahi`, `zinda nahi rehna`),
		Contains(`आत्महत्या`),
	)},
	{Name: "health", Result: SafetyHealthQuery, Match: AnyOf(
		Words(healthTerms...),
		Contains(`दवा`, `बुखार`, `दर्द`),
	)},
	{Name: "sensitive", Result: SafetySensitive, Match: Words(
		`politics?`, `political`, `election`, `religion`, `religious`, `caste`, `sex`, `sexual`, `alcohol`, `sharab`,
		`drugs?`, `weed`, `loan`, `debt`, `karz`, `divorce`, `abuse`, `harass(?:ment|ed)?`, `breakup`, `cheat(?:ed|ing)`)},
	{Name: "clean", Result: SafetyClean, Match: Always},
}

// healthTerms covers symptoms, medicines and home remedies. Mentioning a
// remedy is itself a health query.
var healthTerms = []string{
	`fever`, `bukhar`, `bukhaar`, `headache`, `migraine`, `sir dard`, `sar dard`, `pain`, `dard`, `cough`, `khansi`,
	`cold`, `zukam`, `jukam`, `sore throat`, `gala kharab`, `medicines?`, `medication`, `dawai`, `dawa`, `tablets?`,
	`pills?`, `dose`, `dosage`, `symptoms?`, `doctor`, `diabetes`, `blood sugar`, `sugar level`, `bp`, `blood pressure`,
	`pregnan(?:t|cy)`, `periods?`, `vomit(?:ing)?`, `ulti`, `diarrh?oea`, `diarrhea`, `loose motions?`, `acidity`,
	`chest pain`, `seene me dard`, `breathing`, `saans`, `allerg(?:y|ic)`, `rash`, `infection`, `injury`, `chot`,
	`haldi`, `turmeric`, `kadha`, `ayurved(?:a|ic)`, `homeopath(?:y|ic)`, `remed(?:y|ies)`, `nuskha`, `ilaaj`, `ilaj`,
	`treatment`, `paracetamol`, `crocin`, `dolo`, `ibuprofen`, `antibiotics?`, `ashwagandha`, `giloy`, `tulsi`,
	`adrak`, `thyroid`, `cholesterol`, `insomnia`, `neend nahi`, `weight loss`,
}

var emotionRules = []Rule[Emotion]{
	{Name: "anger", Result: EmotionAnger, Match: Words(
		`angry`, `gussa`, `furious`, `hate`, `irritat(?:ed|ing)`, `pissed`, `nafrat`)},
	{Name: "sadness", Result: EmotionSadness, Match: Words(
		`sad`, `dukhi`, `udaas`, `udas`, `cry(?:ing)?`, `rona`, `depressed`, `lonely`, `akela`, `akeli`, `heartbroken`,
		`miss (?:him|her|you|them)`, `dil toot`)},
	{Name: "anxiety", Result: EmotionAnxiety, Match: Words(
		`anxious`, `anxiety`, `worried`, `worry`, `tension`, `nervous`, `scared`, `darr`, `dar lag`, `panic`, `pareshan`,
		`stress(?:ed)?`, `ghabra`)},
	{Name: "frustration", Result: EmotionFrustration, Match: Words(
		`frustrat(?:ed|ing)`, `fed up`, `thak gaya`, `thak gayi`, `tired of`, `sick of`, `bore ho`)},
	{Name: "joy", Result: EmotionJoy, Match: AnyOf(
		Words(`happy`, `khush`, `excited`, `yay`, `awesome`, `great news`, `mil gaya`, `congrats`, `selected`, `passed`),
		Contains(`😀`, `😊`, `😂`, `❤️`, `🎉`),
	)},
	{Name: "neutral", Result: EmotionNeutral, Match: Always},
}

var complexTerms = Words(
	`quantum`, `algorithm`, `architecture`, `derivative`, `integral`, `philosophy`, `economics`, `thermodynamics`,
	`blockchain`, `machine learning`, `neural`, `recursion`, `analy[sz]e`, `pros and cons`, `trade-?offs?`, `strategy`,
	`compare`, `comparison`, `implications`, `in detail`, `vistaar se`)

var freshDataTerms = AnyOf(
	Words(`today`, `tonight`, `latest`, `news`, `current(?:ly)?`, `price`, `rate`, `weather`, `score`, `live`,
		`right now`, `this week`, `aaj`, `abhi`, `is saal`, `stock`, `results?`, `holiday`, `match`),
	Pattern(`\b20[2-9][0-9]\b`),
)

// hinglishMarkers are frequent Roman-script Hindi function and verb words.
var hinglishMarkers = toSet(
	"hai", "hain", "kya", "kaise", "nahi", "nahin", "mera", "meri", "mere", "tera", "teri", "tum", "aap", "main",
	"mai", "hum", "ka", "ki", "ke", "ko", "se", "mein", "bhi", "aur", "ye", "yeh", "woh", "wo", "kuch",
	"bahut", "bohot", "accha", "acha", "achha", "theek", "thik", "kar", "karo", "karna", "raha", "rahi", "rahe",
	"tha", "thi", "batao", "bata", "bataiye", "hoon", "hu", "kyu", "kyun", "kab", "kahan", "abhi", "aaj", "kal",
	"yaar", "bhai", "ji", "haan", "toh", "lekin", "sab", "kaun", "kitna", "chahiye", "chahta", "chahti", "wala",
	"wali", "diya", "liya", "piya", "khaya", "maine", "mujhe", "tujhe", "unko", "isko", "usko", "banane", "banana",
	"tarika", "dena", "lena", "gaya", "gayi", "samjhao", "matlab", "bolo", "suno", "dekho", "kaisa", "kaisi",
)

var followUpMarkers = Words(
	`it`, `that`, `this`, `those`, `these`, `them`, `he`, `she`, `they`, `uska`, `uski`, `uske`, `iska`, `iski`,
	`iske`, `usme`, `isme`, `woh`, `wo`, `ye`, `aur`, `also`, `more`, `what about`, `and`, `phir`, `fir`, `then`,
	`why`, `kyun`, `kyu`)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
