package fraud

// ValidTaxID checks a CPF (11 digits) or CNPJ (14 digits) including its
// check digits. Repeated-digit documents are rejected.
func ValidTaxID(digits string) bool {
	switch len(digits) {
	case 11:
		return validCPF(digits)
	case 14:
		return validCNPJ(digits)
	}
	return false
}

func repeated(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

func checkDigit(s string, weights []int) byte {
	sum := 0
	for i, w := range weights {
		sum += int(s[i]-'0') * w
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + 11 - r)
}

func validCPF(d string) bool {
	if repeated(d) {
		return false
	}
	w1 := []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	return checkDigit(d, w1) == d[9] && checkDigit(d, w2) == d[10]
}

func validCNPJ(d string) bool {
	if repeated(d) {
		return false
	}
	w1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	return checkDigit(d, w1) == d[12] && checkDigit(d, w2) == d[13]
}

var disposableDomains = []string{
	"mailinator.com",
	"guerrillamail.com",
	"10minutemail.com",
	"tempmail.com",
	"temp-mail.org",
	"yopmail.com",
	"throwawaymail.com",
	"trashmail.com",
	"getnada.com",
	"sharklasers.com",
	"dispostable.com",
	"maildrop.cc",
	"fakeinbox.com",
	"mailnesia.com",
	"emailondeck.com",
}
