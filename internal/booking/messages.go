package booking

import "golang.org/x/text/language"

type msgKey int

const (
	msgAlreadyRegistered msgKey = iota
	msgPaymentDeclined
	msgSubmissionInFlight
	msgNothingToRetry
	msgInvalidRequest
	msgPaymentConfirmed
	msgFreeConfirmed
	msgRedirecting
	msgPaymentFailed
	msgTryAgain
)

var supportedLocales = []language.Tag{language.English, language.Arabic}

var localeMatcher = language.NewMatcher(supportedLocales)

var catalog = map[language.Tag]map[msgKey]string{
	language.English: {
		msgAlreadyRegistered:  "You are already registered for this workshop.",
		msgPaymentDeclined:    "We could not start the payment. Please try again.",
		msgSubmissionInFlight: "Your registration is already being processed.",
		msgNothingToRetry:     "There is no registration to retry the payment for.",
		msgInvalidRequest:     "Please complete your registration details.",
		msgPaymentConfirmed:   "Payment received. Your seat is confirmed.",
		msgFreeConfirmed:      "Your registration is confirmed.",
		msgRedirecting:        "Redirecting you to the payment page.",
		msgPaymentFailed:      "The payment was not completed. You can try again.",
		msgTryAgain:           "Something went wrong. Please try again.",
	},
	language.Arabic: {
		msgAlreadyRegistered:  "أنت مسجل بالفعل في هذه الورشة.",
		msgPaymentDeclined:    "تعذر بدء عملية الدفع. يرجى المحاولة مرة أخرى.",
		msgSubmissionInFlight: "طلب التسجيل الخاص بك قيد المعالجة بالفعل.",
		msgNothingToRetry:     "لا يوجد تسجيل لإعادة محاولة الدفع له.",
		msgInvalidRequest:     "يرجى استكمال بيانات التسجيل.",
		msgPaymentConfirmed:   "تم استلام الدفع وتأكيد مقعدك.",
		msgFreeConfirmed:      "تم تأكيد تسجيلك.",
		msgRedirecting:        "جارٍ تحويلك إلى صفحة الدفع.",
		msgPaymentFailed:      "لم تكتمل عملية الدفع. يمكنك المحاولة مرة أخرى.",
		msgTryAgain:           "حدث خطأ ما. يرجى المحاولة مرة أخرى.",
	},
}

// matchLocale picks the supported language closest to an Accept-Language style string.
// Unknown or empty input falls back to English.
func matchLocale(locale string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return supportedLocales[idx]
}

func message(tag language.Tag, k msgKey) string {
	if m, ok := catalog[tag]; ok {
		if s, ok := m[k]; ok {
			return s
		}
	}
	return catalog[language.English][k]
}

// TryAgainMessage is the localized text for infrastructure failures.
func TryAgainMessage(locale string) string {
	return message(matchLocale(locale), msgTryAgain)
}
