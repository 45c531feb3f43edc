package correlation

// nicknames maps common short forms to the canonical first name. Keys and
// values are lowercase.
var nicknames = map[string]string{
	"abby":  "abigail",
	"alex":  "alexander",
	"andy":  "andrew",
	"beth":  "elizabeth",
	"bill":  "william",
	"bob":   "robert",
	"cathy": "catherine",
	"chris": "christopher",
	"chuck": "charles",
	"dan":   "daniel",
	"danny": "daniel",
	"dave":  "david",
	"deb":   "deborah",
	"dick":  "richard",
	"ed":    "edward",
	"gabe":  "gabriel",
	"greg":  "gregory",
	"jen":   "jennifer",
	"jim":   "james",
	"joe":   "joseph",
	"jon":   "jonathan",
	"kate":  "katherine",
	"katie": "katherine",
	"ken":   "kenneth",
	"liz":   "elizabeth",
	"matt":  "matthew",
	"meg":   "margaret",
	"mike":  "michael",
	"nick":  "nicholas",
	"pat":   "patricia",
	"pete":  "peter",
	"rick":  "richard",
	"rob":   "robert",
	"ron":   "ronald",
	"sam":   "samuel",
	"steve": "steven",
	"sue":   "susan",
	"ted":   "theodore",
	"tom":   "thomas",
	"tony":  "anthony",
	"will":  "william",
}
