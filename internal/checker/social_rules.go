package checker

import (
	"regexp"
	"strings"
)

type textRule struct {
	name      string
	language  string
	indicator Indicator
	pattern   *regexp.Regexp
	// cue rules match bare keywords that also occur in ordinary messages.
	// They only count when another indicator category matched as well.
	cue bool
}

// wordPattern matches any alternative delimited by non-letters. Go's \b only
// understands ASCII word characters, so boundaries are spelled with \p{L}\p{N}.
// Patterns run against NormalizeText output: folded case, ASCII digits,
// ZWNJ replaced by a space.
func wordPattern(alternatives ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(?:` + strings.Join(alternatives, "|") + `)(?:[^\p{L}\p{N}]|$)`)
}

var textRules = []textRule{
	// English
	{"en_urgency_words", "en", IndicatorUrgency, wordPattern(
		`urgent(?:ly)?`, `immediately`, `right away`, `as soon as possible`, `asap`,
	), true},
	{"en_urgency_pressure", "en", IndicatorUrgency, wordPattern(
		`act now`, `do(?:n['’]?t| not) delay`, `before it['’]?s too late`,
	), false},
	{"en_urgency_deadline", "en", IndicatorUrgency, wordPattern(
		`within \d+ (?:hours?|hrs?|minutes?|mins?)`,
		`(?:final|last) (?:notice|warning|reminder|chance)`,
		`expires? (?:today|tonight|soon|in \d+ (?:hours?|minutes?))`,
	), false},
	{"en_urgency_suspension", "en", IndicatorUrgency, wordPattern(
		`(?:account|card|service|access|number) (?:will be |has been |is )?(?:suspended|closed|locked|blocked|terminated|deactivated)`,
	), false},
	{"en_payment_words", "en", IndicatorPaymentRequest, wordPattern(
		`payment`, `bank transfer`, `gift ?cards?`, `bitcoin`, `btc`, `usdt`, `crypto ?(?:currency|wallet)`,
		`western union`, `moneygram`,
	), true},
	{"en_payment_request", "en", IndicatorPaymentRequest, wordPattern(
		`pay (?:now|the|your|a|an|us|immediately)`, `wire (?:transfer|the money)`,
		`transfer (?:the )?(?:money|funds|\$?\d+)`, `send (?:me |us )?(?:money|funds|\$\d+|\d+ ?(?:dollars|usd|eur))`,
		`(?:buy|purchase|send) (?:a |some |the )?gift ?cards?`,
		`(?:pay|send|payment) (?:in|with|via) (?:bitcoin|btc|usdt|crypto|gift ?cards?)`,
		`outstanding (?:balance|fee|invoice|amount)`, `processing fee`,
	), false},
	{"en_credential_words", "en", IndicatorCredentialRequest, wordPattern(
		`password`, `passcode`, `pin(?: code| number)?`, `one[- ]time (?:code|password|pin)`, `otp`,
		`verification code`, `security code`, `cvv2?`, `card number`, `login (?:details|credentials)`,
		`social security number`, `ssn`,
	), true},
	{"en_credential_request", "en", IndicatorCredentialRequest, wordPattern(
		`(?:send|share|enter|give|provide|tell|text|reply with) (?:me |us )?(?:your |the )?(?:password|passcode|pin(?: code| number)?|one[- ]time (?:code|password|pin)|otp|verification code|security code|cvv2?|card number|login (?:details|credentials)|social security number|ssn)`,
		`(?:confirm|verify|update|validate) your (?:account|identity|details|information|credentials|login|password)`,
	), false},
	{"en_impersonation", "en", IndicatorImpersonation, wordPattern(
		`this is (?:your|the) (?:bank|ceo|boss|manager|it department|it team|help ?desk|support team|tax office)`,
		`(?:bank|paypal|apple|microsoft|amazon|google|netflix|irs|hmrc|fedex|dhl|ups|police) (?:support|security|team|department|customer service|account team)`,
		`official (?:notice|notification)`, `on behalf of (?:your|the) (?:bank|government|police)`,
	), false},
	{"en_prize", "en", IndicatorPrizeLure, wordPattern(
		`you(?: have|['’]ve)? (?:won|been selected)`, `winner`, `lottery`, `cash prize`,
		`claim (?:your )?(?:prize|reward|gift|bonus|refund)`, `free (?:gift|iphone|prize|vacation|trip)`,
		`selected to receive`,
	), false},
	{"en_click_lure", "en", IndicatorSuspiciousLink, wordPattern(
		`click (?:here|the link|this link|below)`, `tap (?:here|the link)`,
	), false},

	// Persian
	{"fa_urgency_words", "fa", IndicatorUrgency, wordPattern(
		`فوری`, `فورا`, `سریعا`, `همین (?:الان|امروز)`, `هر ?چه سریع ?تر`, `اخطار`,
	), true},
	{"fa_urgency_deadline", "fa", IndicatorUrgency, wordPattern(
		`آخرین (?:فرصت|مهلت|اخطار)`, `تا \d+ ساعت (?:آینده|دیگر)`,
	), false},
	{"fa_urgency_suspension", "fa", IndicatorUrgency, wordPattern(
		`(?:مسدود|قطع|غیر ?فعال) (?:خواهد شد|می ?شود|شده)`,
	), false},
	{"fa_payment_words", "fa", IndicatorPaymentRequest, wordPattern(
		`واریز\p{L}{0,3}`, `پرداخت\p{L}{0,3}`, `انتقال وجه`, `شماره حساب`,
		`(?:شماره )?شبا`, `بیت ?کوین`, `تتر`,
	), true},
	{"fa_payment_request", "fa", IndicatorPaymentRequest, wordPattern(
		`(?:واریز|پرداخت|انتقال) (?:کنید|نمایید|فرمایید)`, `کارت به کارت`,
		`هزینه (?:ارسال|پستی|ثبت|فعال ?سازی)`,
	), false},
	{"fa_credential_words", "fa", IndicatorCredentialRequest, wordPattern(
		`رمز`, `کد (?:تایید|فعال ?سازی|یک ?بار مصرف|امنیتی)`, `شماره کارت`, `تاریخ انقضا`,
		`اطلاعات (?:حساب|کارت|ورود)`,
	), true},
	{"fa_credential_request", "fa", IndicatorCredentialRequest, wordPattern(
		`(?:رمز|کد (?:تایید|فعال ?سازی|یک ?بار مصرف|امنیتی)|شماره کارت|اطلاعات (?:حساب|کارت|ورود))[^.!?؟\n]{0,40}?(?:(?:ارسال|وارد|اعلام) (?:کنید|نمایید)|بفرستید)`,
	), false},
	{"fa_impersonation", "fa", IndicatorImpersonation, wordPattern(
		`بانک مرکزی`, `پلیس فتا`, `از طرف (?:بانک|پلیس|دادگاه)`, `پشتیبانی (?:بانک|همراه اول|ایرانسل)`,
		`ابلاغیه`, `قوه قضا[یئ]یه`, `دادگستری`, `سامانه (?:ثنا|عدالت|ابلاغ)`, `شاپرک`,
	), false},
	{"fa_prize", "fa", IndicatorPrizeLure, wordPattern(
		`برنده`, `جایزه`, `قرعه ?کشی`, `هدیه (?:نقدی|رایگان)`, `سهام عدالت`,
	), false},
	{"fa_click_lure", "fa", IndicatorSuspiciousLink, wordPattern(
		`کلیک کنید`, `لینک زیر`, `روی لینک`,
	), false},

	// Language independent
	{"shortened_link", "any", IndicatorSuspiciousLink, wordPattern(
		`https?://(?:bit\.ly|tinyurl\.com|t\.co|goo\.gl|is\.gd|cutt\.ly|rb\.gy|ow\.ly|t\.ly|shorturl\.at)/\S*`,
	), false},
	{"ip_literal_link", "any", IndicatorSuspiciousLink, wordPattern(
		`https?://\d{1,3}(?:\.\d{1,3}){3}\S*`,
	), false},
	{"credential_link", "any", IndicatorSuspiciousLink, wordPattern(
		`https?://[^\s/@]+@\S+`, `https?://[^\s/]*xn--\S*`,
	), false},
}
