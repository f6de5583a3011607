package roles

import "strings"

var displayNames = map[Role]string{
	Admin:          "Administrador",
	PastorConselho: "Pastor do Conselho",
	PastorRegional: "Pastor Regional",
	PastorLocal:    "Pastor Local",
	Secretaria:     "Secretaria",
}

var colors = map[Role]string{
	Admin:          "bg-red-500",
	PastorConselho: "bg-purple-500",
	PastorRegional: "bg-blue-500",
	PastorLocal:    "bg-green-500",
	Secretaria:     "bg-orange-500",
}

// DisplayName returns the label shown for r. Unknown roles show as-is.
func DisplayName(r Role) string {
	if n, ok := displayNames[r]; ok {
		return n
	}
	return string(r)
}

// Color returns the badge color class for r.
func Color(r Role) string {
	if c, ok := colors[r]; ok {
		return c
	}
	return "bg-gray-500"
}

// FormatDisplay joins role labels for display:
//
//	[]                 -> "Sem função"
//	[a]                -> "A"
//	[a, b]             -> "A e B"
//	[a, b, c]          -> "A, B e C"
func FormatDisplay(rs []Role) string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = DisplayName(r)
	}
	switch len(names) {
	case 0:
		return "Sem função"
	case 1:
		return names[0]
	case 2:
		return names[0] + " e " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " e " + names[len(names)-1]
	}
}
