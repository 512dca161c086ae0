package extract

// airportCodes maps IATA codes of major airports to ISO country codes.
var airportCodes = map[string]string{
	// United States
	"JFK": "US",
	"LAX": "US",
	"ORD": "US",
	"DFW": "US",
	"DEN": "US",
	"SFO": "US",
	"SEA": "US",
	"LAS": "US",
	"MCO": "US",
	"EWR": "US",
	"BOS": "US",
	"ATL": "US",
	"MIA": "US",
	"PHX": "US",
	"IAH": "US",
	// Europe
	"LHR": "GB",
	"LGW": "GB",
	"STN": "GB",
	"MAN": "GB",
	"EDI": "GB",
	"CDG": "FR",
	"ORY": "FR",
	"NCE": "FR",
	"LYS": "FR",
	"FRA": "DE",
	"MUC": "DE",
	"TXL": "DE",
	"BER": "DE",
	"DUS": "DE",
	"AMS": "NL",
	"BCN": "ES",
	"MAD": "ES",
	"FCO": "IT",
	"MXP": "IT",
	"VIE": "AT",
	"ZRH": "CH",
	"GVA": "CH",
	"CPH": "DK",
	"ARN": "SE",
	"OSL": "NO",
	"HEL": "FI",
	"DUB": "IE",
	"LIS": "PT",
	"ATH": "GR",
	"PRG": "CZ",
	"WAW": "PL",
	"BUD": "HU",
	"OTP": "RO",
	"SOF": "BG",
	// Asia
	"HND": "JP",
	"NRT": "JP",
	"KIX": "JP",
	"ICN": "KR",
	"GMP": "KR",
	"PEK": "CN",
	"PVG": "CN",
	"CAN": "CN",
	"HKG": "HK",
	"TPE": "TW",
	"SIN": "SG",
	"BKK": "TH",
	"KUL": "MY",
	"CGK": "ID",
	"MNL": "PH",
	"DEL": "IN",
	"BOM": "IN",
	"DXB": "AE",
	"DOH": "QA",
	"TLV": "IL",
	// Oceania
	"SYD": "AU",
	"MEL": "AU",
	"BNE": "AU",
	"PER": "AU",
	"AKL": "NZ",
	// Americas
	"YYZ": "CA",
	"YVR": "CA",
	"YUL": "CA",
	"YYC": "CA",
	"MEX": "MX",
	"CUN": "MX",
	"GRU": "BR",
	"GIG": "BR",
	"EZE": "AR",
	"SCL": "CL",
	"BOG": "CO",
	"LIM": "PE",
	// Africa
	"JNB": "ZA",
	"CPT": "ZA",
	"CAI": "EG",
	"CMN": "MA",
	"NBO": "KE",
}

// cityToCountry maps lowercase city names of major cities to ISO country codes.
var cityToCountry = map[string]string{
	"paris":          "FR",
	"london":         "GB",
	"new york":       "US",
	"tokyo":          "JP",
	"berlin":         "DE",
	"rome":           "IT",
	"madrid":         "ES",
	"amsterdam":      "NL",
	"barcelona":      "ES",
	"vienna":         "AT",
	"prague":         "CZ",
	"budapest":       "HU",
	"lisbon":         "PT",
	"athens":         "GR",
	"dublin":         "IE",
	"copenhagen":     "DK",
	"stockholm":      "SE",
	"oslo":           "NO",
	"helsinki":       "FI",
	"zurich":         "CH",
	"geneva":         "CH",
	"brussels":       "BE",
	"warsaw":         "PL",
	"krakow":         "PL",
	"singapore":      "SG",
	"hong kong":      "HK",
	"bangkok":        "TH",
	"seoul":          "KR",
	"beijing":        "CN",
	"shanghai":       "CN",
	"dubai":          "AE",
	"tel aviv":       "IL",
	"sydney":         "AU",
	"melbourne":      "AU",
	"auckland":       "NZ",
	"toronto":        "CA",
	"vancouver":      "CA",
	"montreal":       "CA",
	"mexico city":    "MX",
	"cancun":         "MX",
	"sao paulo":      "BR",
	"rio de janeiro": "BR",
	"buenos aires":   "AR",
	"cape town":      "ZA",
	"johannesburg":   "ZA",
	"cairo":          "EG",
	"marrakech":      "MA",
	"los angeles":    "US",
	"san francisco":  "US",
	"chicago":        "US",
	"miami":          "US",
	"las vegas":      "US",
	"boston":         "US",
	"seattle":        "US",
	"washington":     "US",
	"milan":          "IT",
	"florence":       "IT",
	"venice":         "IT",
	"naples":         "IT",
	"munich":         "DE",
	"frankfurt":      "DE",
	"hamburg":        "DE",
	"cologne":        "DE",
	"lyon":           "FR",
	"marseille":      "FR",
	"nice":           "FR",
	"bordeaux":       "FR",
	"edinburgh":      "GB",
	"manchester":     "GB",
	"liverpool":      "GB",
	"glasgow":        "GB",
	"kyoto":          "JP",
	"osaka":          "JP",
	"taipei":         "TW",
	"kuala lumpur":   "MY",
	"bali":           "ID",
	"jakarta":        "ID",
	"manila":         "PH",
	"hanoi":          "VN",
	"ho chi minh":    "VN",
	"mumbai":         "IN",
	"delhi":          "IN",
	"bangalore":      "IN",
	"istanbul":       "TR",
	"doha":           "QA",
	"abu dhabi":      "AE",
	"riyadh":         "SA",
	"nairobi":        "KE",
	"lagos":          "NG",
	"casablanca":     "MA",
	"tunis":          "TN",
}

// commonNames maps informal country mentions that the registry's official
// names miss.
var commonNames = map[string]string{
	"united states":  "US",
	"america":        "US",
	"united kingdom": "GB",
	"britain":        "GB",
	"netherlands":    "NL",
	"holland":        "NL",
	"czech republic": "CZ",
}
