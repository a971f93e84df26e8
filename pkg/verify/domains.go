package verify

import "strings"

var disposableDomains = map[string]struct{}{
	"10minutemail.com": {}, "20minutemail.com": {}, "guerrillamail.com": {},
	"mailinator.com": {}, "yopmail.com": {}, "tempmail.org": {}, "tempmail.com": {},
	"throwaway.email": {}, "maildrop.cc": {}, "fakemail.io": {}, "mailnull.com": {},
	"incognitomail.com": {}, "spambox.info": {}, "temp-mail.org": {}, "maildu.de": {},
	"nowmymail.com": {}, "mailme.ir": {}, "mailnesia.com": {}, "trashmail.com": {},
	"mailcatch.com": {}, "zebins.com": {}, "yogamaven.com": {}, "mailinator2.com": {},
	"deadaddress.com": {}, "reallymymail.com": {}, "mailsac.com": {}, "temp-mail.io": {},
}

var webmailDomains = map[string]struct{}{
	"gmail.com": {}, "yahoo.com": {}, "outlook.com": {}, "hotmail.com": {}, "aol.com": {},
	"icloud.com": {}, "protonmail.com": {}, "tutanota.com": {}, "zoho.com": {}, "mail.com": {},
}

// matchDomain reports whether domain or any of its parent domains is in set.
func matchDomain(set map[string]struct{}, domain string) bool {
	for d := domain; d != ""; {
		if _, ok := set[d]; ok {
			return true
		}
		i := strings.IndexByte(d, '.')
		if i < 0 {
			return false
		}
		d = d[i+1:]
	}
	return false
}

// IsDisposable reports whether domain belongs to a known throwaway mailbox provider.
func IsDisposable(domain string) bool {
	return matchDomain(disposableDomains, strings.ToLower(domain))
}

// IsWebmail reports whether domain belongs to a known consumer webmail provider.
func IsWebmail(domain string) bool {
	return matchDomain(webmailDomains, strings.ToLower(domain))
}
