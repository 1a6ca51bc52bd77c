package gdal

import (
	"net/url"
	"strings"
)

// GDAL virtual file system prefixes by locator scheme.
var vsiPrefixes = []struct {
	scheme string
	prefix string
	keep   bool // whether the scheme stays part of the path
}{
	{"https://", "/vsicurl/", true},
	{"http://", "/vsicurl/", true},
	{"s3://", "/vsis3/", false},
	{"az://", "/vsiaz/", false},
	{"gs://", "/vsigs/", false},
}

// NormalizeLocator rewrites locators GDAL cannot open as given. NGDC
// THREDDS file and NcML URLs become their OPeNDAP form.
func NormalizeLocator(locator string) string {
	u, err := url.Parse(locator)
	if err != nil || u.Host == "" {
		return locator
	}
	if !strings.Contains(u.Host, "ngdc.noaa.gov") ||
		!strings.Contains(strings.ToLower(u.Path), "thredds") ||
		!strings.HasSuffix(strings.ToLower(u.Path), ".nc") {
		return locator
	}

	u.RawQuery = ""
	u.Fragment = ""
	switch {
	case strings.Contains(u.Path, "/fileServer/"):
		u.Path = strings.Replace(u.Path, "/fileServer/", "/dodsC/", 1)
	case strings.Contains(u.Path, "/ncml/"):
		u.Path = strings.Replace(u.Path, "/ncml/", "/dodsC/", 1)
	}
	u.RawPath = ""
	return u.String()
}

// VSIPath maps a locator to the path handed to the GDAL tools. OPeNDAP
// URLs are read by the netCDF driver directly.
func VSIPath(locator string) string {
	if strings.HasPrefix(locator, "/vsi") || strings.Contains(locator, "/dodsC/") {
		return locator
	}
	for _, p := range vsiPrefixes {
		if !strings.HasPrefix(locator, p.scheme) {
			continue
		}
		if p.keep {
			return p.prefix + locator
		}
		return p.prefix + strings.TrimPrefix(locator, p.scheme)
	}
	return locator
}

// FromVSIPath undoes VSIPath for paths reported by GDAL.
func FromVSIPath(path string) string {
	for _, p := range vsiPrefixes {
		if !strings.HasPrefix(path, p.prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, p.prefix)
		if p.keep {
			return rest
		}
		return p.scheme + rest
	}
	return path
}
