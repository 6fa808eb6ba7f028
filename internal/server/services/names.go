package services

import "strings"

const (
	untitledName = "untitled"
	unknownExt   = ".unknown"
	maxNameLen   = 200
	maxExtLen    = 50
)

// Extensions of compressed formats; content sniffing often reports the
// inner type, so names carrying one of these are left alone.
var archiveExts = map[string]struct{}{
	".7z":  {},
	".bz2": {},
	".gz":  {},
	".tar": {},
	".tgz": {},
	".xz":  {},
	".zip": {},
}

// Extension pairs that name the same format.
var equivalentExts = [][2]string{
	{".jpg", ".jpeg"},
	{".tif", ".tiff"},
	{".exe", ".dll"},
}

// ValidateFileName reports whether name is safe to store as a display name.
func ValidateFileName(name string) bool {
	return strings.TrimSpace(name) != "" &&
		len(name) <= maxNameLen &&
		!strings.Contains(name, "/") &&
		!strings.Contains(name, `\`) &&
		!strings.Contains(name, "..")
}

// SanitizeName returns name, or "untitled" when it is not a valid file name.
func SanitizeName(name string) string {
	if ValidateFileName(name) {
		return name
	}
	return untitledName
}

// CorrectFilename appends the detected extension ext to name unless name
// already carries it, an equivalent of it, or ext is an archive extension.
// A nil ext means the type is unknown: names with an extension are kept and
// names without one get ".unknown". Applying it twice changes nothing.
func CorrectFilename(name string, ext *string) string {
	dotExt := unknownExt
	if ext != nil {
		dotExt = *ext
		if !strings.HasPrefix(dotExt, ".") {
			dotExt = "." + dotExt
		}
	}

	nameExt := fileExt(name)
	if nameExt == "" {
		return name + dotExt
	}
	if ext == nil {
		return name
	}

	dotExt = strings.ToLower(dotExt)
	if sameFormat(nameExt, dotExt) {
		return name
	}
	if _, ok := archiveExts[dotExt]; ok {
		return name
	}

	return name + dotExt
}

// fileExt returns the lower-cased extension of name including the dot, or
// "" when name has none. A leading dot alone does not make an extension.
func fileExt(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i:])
}

func sameFormat(a, b string) bool {
	if a == b {
		return true
	}
	for _, p := range equivalentExts {
		if (a == p[0] && b == p[1]) || (a == p[1] && b == p[0]) {
			return true
		}
	}
	return false
}
