package catalog

const genericName = "Generic"

// Builtin returns the compiled-in vendor catalog. Adding a vendor means
// adding a record here (or shipping it in the extension file); nothing else
// changes.
func Builtin() *Catalog {
	return New([]Profile{
		{
			Name:     "TP-Link",
			Keywords: []string{"tp-link", "tplink", "vigi"},
			Ports:    []int{2020, 80, 8080, 554},
			Paths: []string{
				"/onvif/snapshot",
				"/onvif/media/snapshot",
				"/onvif/media1/snapshot",
				"/onvif/media2/snapshot",
				"/onvif/media3/snapshot",
				"/onvif/media_service/snapshot",
				"/onvif/device_service/snapshot",
				"/onvif/event_service/snapshot",
				"/onvif/snapshot/jpeg",
				"/media/snapshot/stream",
				"/stream/snap",
				"/stream/snapshot",
			},
			AuthModes: []string{"Digest", "Basic"},
			MediaServicePaths: []string{
				"/onvif/media_service",
				"/onvif/device_service",
				"/onvif/service",
			},
		},
		{
			Name:     "CP-Plus",
			Keywords: []string{"cp-plus", "cp plus", "cpplus"},
			Ports:    []int{80, 8000, 8080, 554},
			Paths: []string{
				"/onvif/media_service/snapshot",
				"/onvif/streaming/channels/1/picture",
				"/onvif/snap.jpg",
				"/picture/1/current",
				"/picture.jpg",
				"/picture/1",
				"/images/snapshot.jpg",
				"/cgi-bin/snapshot.cgi",
				"/cgi-bin/snapshot",
				"/jpeg",
				"/jpg/1/image.jpg",
				"/snap",
			},
			AuthModes: []string{"Digest", "Basic"},
			MediaServicePaths: []string{
				"/onvif/media_service",
				"/onvif/streaming",
				"/media",
			},
		},
		{
			Name:     "Hikvision",
			Keywords: []string{"hikvision", "hik"},
			Ports:    []int{80, 8000, 554},
			Paths: []string{
				"/ISAPI/Streaming/channels/101/picture",
				"/ISAPI/Streaming/channels/1/picture",
				"/Streaming/channels/1/picture",
				"/onvif/snapshot",
				"/onvif-http/snapshot",
			},
			AuthModes: []string{"Digest", "Basic"},
			MediaServicePaths: []string{
				"/ISAPI/Streaming",
				"/onvif/media_service",
			},
		},
		{
			Name:     "Dahua",
			Keywords: []string{"dahua"},
			Ports:    []int{80, 8080, 554},
			Paths: []string{
				"/cgi-bin/snapshot.cgi",
				"/cgi-bin/snapshot.cgi?channel=1",
				"/cgi-bin/snapManager.cgi?action=attachFileProc&Flags=1",
				"/snapshot/1",
				"/cgi-bin/snapshot",
			},
			AuthModes: []string{"Digest", "Basic"},
			MediaServicePaths: []string{
				"/onvif/media_service",
				"/cgi-bin",
			},
		},
		{
			Name:     genericName,
			Keywords: nil, // fallback, matched by exclusion
			Ports:    []int{80, 8080, 554},
			Paths: []string{
				"/onvif-http/snapshot",
				"/onvif/camera/1/snapshot",
				"/snap.jpg",
				"/snapshot",
				"/image",
				"/image/jpeg.cgi",
				"/cgi-bin/snapshot.cgi",
				"/snapshot.jpg",
				"/jpeg",
				"/video.mjpg",
				"/cgi-bin/api.cgi?cmd=Snap&channel=1",
			},
			AuthModes: []string{"Digest", "Basic"},
			MediaServicePaths: []string{
				"/onvif/media_service",
				"/onvif/device_service",
			},
		},
	})
}
