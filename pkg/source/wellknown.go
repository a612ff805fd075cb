package source

// WellKnownSource identifies one of the built-in default sources.
type WellKnownSource int

const (
	WellKnownWinGet WellKnownSource = iota
	WellKnownMSStore
	WellKnownDesktopFrameworks
)

// Well-known source definitions.
const (
	WinGetName       = "winget"
	WinGetArg        = "https://cdn.winget.microsoft.com/cache"
	WinGetIdentifier = "Microsoft.Winget.Source_8wekyb3d8bbwe"

	MSStoreName       = "msstore"
	MSStoreArg        = "https://storeedgefd.dsx.mp.microsoft.com/v9.0"
	MSStoreIdentifier = "StoreEdgeFD"

	DesktopFrameworksName       = "microsoft.builtin.desktop.frameworks"
	DesktopFrameworksArg        = "https://cdn.winget.microsoft.com/platform"
	DesktopFrameworksIdentifier = "Microsoft.Winget.Platform.Source_8wekyb3d8bbwe"
)

// WellKnownSources lists every built-in source.
var WellKnownSources = []WellKnownSource{WellKnownWinGet, WellKnownMSStore, WellKnownDesktopFrameworks}

// WellKnownDetails returns the default-origin details of s and whether the
// source is visible to users.
func WellKnownDetails(s WellKnownSource) (Details, bool) {
	switch s {
	case WellKnownWinGet:
		return Details{
			Name:       WinGetName,
			Type:       TypePreIndexed,
			Arg:        WinGetArg,
			Identifier: WinGetIdentifier,
			Origin:     OriginDefault,
			TrustLevel: TrustTrusted,
		}, true
	case WellKnownMSStore:
		return Details{
			Name:       MSStoreName,
			Type:       TypeRest,
			Arg:        MSStoreArg,
			Identifier: MSStoreIdentifier,
			Origin:     OriginDefault,
			TrustLevel: TrustTrusted | TrustStoreOrigin,
		}, true
	default:
		return Details{
			Name:       DesktopFrameworksName,
			Type:       TypePreIndexed,
			Arg:        DesktopFrameworksArg,
			Identifier: DesktopFrameworksIdentifier,
			Origin:     OriginDefault,
			TrustLevel: TrustTrusted,
		}, false
	}
}
