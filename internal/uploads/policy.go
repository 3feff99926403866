package uploads

var allowedMimeTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"application/pdf": ".pdf",
}

func IsValidContentType(ct string) bool {
	_, exist := allowedMimeTypes[ct]
	return exist
}

func ExtForMime(m string) (string, bool) {
	ext, ok := allowedMimeTypes[m]
	return ext, ok
}
