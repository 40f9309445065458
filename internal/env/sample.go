package env

// Sample represents a single environmental measurement.
type Sample struct {
	Source string `json:"source"`
	Time   string `json:"time"`

	Temperature float64 `json:"temp_c"`       // °C
	Pressure    float64 `json:"pressure_hpa"` // hPa
	Humidity    float64 `json:"humidity"`     // %RH
	Altitude    float64 `json:"altitude_m"`   // m, from pressure
}
