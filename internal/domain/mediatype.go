package domain

// MediaType is an IANA media type string as used by STAC assets.
type MediaType string

// Media types for the file formats that show up in catalogs.
const (
	MediaCOG        MediaType = "image/tiff; application=geotiff; profile=cloud-optimized"
	MediaFlatGeobuf MediaType = "application/vnd.flatgeobuf"
	MediaGeoJSON    MediaType = "application/geo+json"
	MediaGeoPackage MediaType = "application/geopackage+sqlite3"
	MediaGeoTIFF    MediaType = "image/tiff; application=geotiff"
	MediaTIFF       MediaType = "image/tiff"
	MediaHDF        MediaType = "application/x-hdf"
	MediaHDF5       MediaType = "application/x-hdf5"
	MediaHTML       MediaType = "text/html"
	MediaJPEG       MediaType = "image/jpeg"
	MediaJPEG2000   MediaType = "image/jp2"
	MediaJSON       MediaType = "application/json"
	MediaParquet    MediaType = "application/x-parquet"
	MediaPNG        MediaType = "image/png"
	MediaText       MediaType = "text/plain"
	MediaKML        MediaType = "application/vnd.google-earth.kml+xml"
	MediaXML        MediaType = "application/xml"
	MediaPDF        MediaType = "application/pdf"
	MediaZarr       MediaType = "application/vnd+zarr"
	MediaNetCDF     MediaType = "application/netcdf"
)

var extensionMediaTypes = map[string]MediaType{
	".cog":     MediaCOG,
	".fgb":     MediaFlatGeobuf,
	".geojson": MediaGeoJSON,
	".gpkg":    MediaGeoPackage,
	".geotiff": MediaGeoTIFF,
	".tiff":    MediaTIFF,
	".tif":     MediaTIFF,
	".hdf":     MediaHDF,
	".h5":      MediaHDF5,
	".html":    MediaHTML,
	".jpg":     MediaJPEG,
	".jpeg":    MediaJPEG,
	".jp2":     MediaJPEG2000,
	".json":    MediaJSON,
	".parquet": MediaParquet,
	".png":     MediaPNG,
	".txt":     MediaText,
	".kml":     MediaKML,
	".xml":     MediaXML,
	".pdf":     MediaPDF,
	".zarr":    MediaZarr,
	".nc":      MediaNetCDF,
}

// MediaTypeForLocator derives the media type from the locator's extension.
// Unknown extensions return "".
func MediaTypeForLocator(locator string) MediaType {
	return extensionMediaTypes[LocatorExtension(locator)]
}
