package threat

// Category classifies a detection rule
type Category string

const (
	CategorySQLi Category = "sqli"
	CategoryXSS  Category = "xss"
)

// Signature lists are ordered; the first match wins. Patterns are compiled
// once at startup and never change afterwards.
var sqliPatterns = []string{
	`(?i)(\b|')SELECT(\b|')`,
	`(?i)(\b|')INSERT(\b|')`,
	`(?i)(\b|')UPDATE(\b|')`,
	`(?i)(\b|')DELETE(\b|')`,
	`(?i)(\b|')DROP(\b|')`,
	`(?i)(\b|')UNION(\b|')`,
	`(?i)(\b|')OR 1=1(\b|')`,
	`(?i)(\b|')OR '1'='1(\b|')`,
	`(?i)(\b|')--(\b|')`,
	`(?i)(\b|');(\b|')`,
}

var xssPatterns = []string{
	`(?i)<script[^>]*>.*?</script>`,
	`(?i)<img[^>]*onerror[^>]*>`,
	`(?i)<iframe[^>]*>.*?</iframe>`,
	`(?i)javascript:`,
	`(?i)onload=`,
	`(?i)onclick=`,
	`(?i)onmouseover=`,
}
