package core

import "fmt"

const (
	AIName      = "Mike"
	CreatorName = "@rnp_e"
	CreatorLink = "https://t.me/rnp_e"

	// ProfilePlaceholder marks where the user profile block goes inside an instruction body.
	ProfilePlaceholder = "{USER_PROFILE_INFO_BLOCK}"

	NewConversationName = "محادثة جديدة"
	conversationNameLen = 30

	announcementIDPrefix = "announcement-"
	apiKeyErrorIDPrefix  = "error-apikey"
)

// BaseInstruction is the built-in personality. The profile block is spliced in at ProfilePlaceholder.
const BaseInstruction = ProfilePlaceholder + `أنت ` + AIName + `، مساعد ذكاء اصطناعي يتمتع بشخصية سعودية ودودة وذكية ومحترمة. يجب أن تعكس ردودك دائمًا هذه الشخصية. قم بدمج العبارات السعودية الشائعة مثل "هلا وغلا"، "أبشر"، "تم يا بعدي"، "سم طال عمرك"، "ما طلبت شي"، و "الله يحييك" بشكل طبيعي في محادثاتك. أنت فخور بهويتك السعودية. إذا سُئلت عن منشئك، اذكر أن مطورك هو ` + CreatorName + ` وأشر إليه بشكل إيجابي، على سبيل المثال، "مطوري هو ` + CreatorName + `، الله يعطيه العافية!". أنت تفهم ويمكنك الرد على النكات والسخرية والفكاهة في سياق سعودي. يمكنك إنشاء صور عند الطلب (على سبيل المثال، "ارسم لي..."، "أنشئ صورة لـ..."). إذا لم تكن متأكدًا من شيء ما أو لا يمكنك تلبية طلب، فاذكر ذلك بأدب واذكر أنك قد تحتاج إلى التحقق مع مطورك، ` + CreatorName + `. اسعَ دائمًا لأن تكون مفيدًا ومهذبًا ومبدعًا. تجنب اللغة الرسمية المفرطة ما لم يكن ذلك مناسبًا للسياق. عند إنشاء الصور، يمكنك الإعلان عنها بحماس، على سبيل المثال، "جايك أحلى تصميم!" أو "أبشر بالصورة اللي تسر خاطرك!". لغتك الأساسية للتفاعل هي العربية، ولكن يمكنك فهم والرد باللغة الإنجليزية إذا بدأ المستخدم باللغة الإنجليزية، مع الحفاظ على شخصيتك السعودية.`

const (
	InitialGreeting   = `هلا وغلا! أنا ` + AIName + `، مساعدك الذكي. سمّ طال عمرك، كيف أقدر أخدمك اليوم؟ تقدر تسألني أي شي أو تطلب مني أرسم لك صورة.`
	VoiceCommandStart = `سمّ، أنا ` + AIName + `، تقدر تكلمني متى ما بغيت.`

	thinkingText       = "لحظات أفكر لك..."
	creatorResponse    = "مطوري هو " + CreatorName + "، الله يعطيه العافية ويوفقه! هو اللي علمني كل شي."
	noAnswerText       = "عفوًا، لم أجد ردًا مناسبًا أو أن الرد كان فارغًا."
	textErrorPrefix    = "عفوًا، واجهتني مشكلة في معالجة طلبك. "
	imageErrorPrefix   = "عفوًا، واجهتني مشكلة في إنشاء الصورة. "
	imageEmptyText     = "لم أتمكن من إنشاء الصورة. حاول مرة أخرى بطلب مختلف."
	defaultImagePrompt = "صورة فنية مذهلة"
	apiKeyMissingText  = "عفوًا، يبدو أن مفتاح الواجهة البرمجية (API Key) غير مهيأ. يرجى التأكد من تهيئته بشكل صحيح. لا يمكنني العمل بدون المفتاح."
	interruptedText    = "انقطع الطلب قبل اكتماله. حاول مرة أخرى."

	captureUnavailableText = "عفوًا، خدمة التعرف على الصوت غير متاحة في متصفحك أو أن مفتاح الواجهة البرمجية غير مهيأ أو أنك لم تسجل الدخول."
	captureGenericError    = "حدث خطأ أثناء التعرف على الصوت."
	captureNoSpeech        = "لم أسمع أي صوت. حاول مرة أخرى."
	captureAudioError      = "مشكلة في الميكروفون. تأكد من أنه يعمل."
	captureNotAllowed      = "لم تسمح باستخدام الميكروفون."

	defaultTemplateName = "الشخصية الافتراضية للنظام"
)

func imageLoadingText(prompt string) string {
	if prompt == "" {
		prompt = "طلبك"
	}
	return fmt.Sprintf("أبشر! جاري رسم \"%s\"...", prompt)
}

func imageReadyText(prompt string) string {
	if prompt == "" {
		return "تفضل، هذي الصورة طلبتها خصيصًا لك"
	}
	return fmt.Sprintf("تفضل، هذي الصورة طلبتها خصيصًا لك: \"%s\"", prompt)
}

func announcementText(message string) string {
	return "📢 **إعلان:** " + message
}

// ProfilePromptMessage invites a user with an empty profile to fill it in.
func ProfilePromptMessage(username string) string {
	return fmt.Sprintf(`هلا بك يا %s! أشوفك جديد معنا أو ما عرفتنا على نفسك زين. ودك تحدث بياناتك الشخصية من قسم "الملف الشخصي" في الشريط الجانبي؟ تقدر تضيف اسمك (اللي تحب أناديك فيه)، عمرك، وجنسيتك عشان تكون سواليفنا أحلى وأعرفك أكثر! إذا ما ودك، ما فيه مشكلة أبد.`, username)
}
