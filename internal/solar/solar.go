// Package solar computes the sun's position and a daylight summary for a location.
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

type Position struct {
	ElevationDeg   float64 `json:"elevationDeg"`
	AzimuthDeg     float64 `json:"azimuthDeg"`
	DeclinationDeg float64 `json:"declinationDeg"`
	EqOfTimeMin    float64 `json:"eqOfTimeMin"`
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
func fixAngle(a float64) float64   { return a - 360.0*math.Floor(a/360.0) }

// declination returns the apparent solar declination and the equation of time for t.
func declination(t time.Time) (decl, eqTimeMin float64) {
	jd := julian.TimeToJD(t.UTC())
	T := (jd - 2451545.0) / 36525.0

	l0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	m := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)
	c := math.Sin(degToRad(m))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*m))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*m))*0.000289
	omega := 125.04 - 1934.136*T
	lambda := l0 + c - 0.00569 - 0.00478*math.Sin(degToRad(omega))
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	eps := eps0 + 0.00256*math.Cos(degToRad(omega))
	decl = radToDeg(math.Asin(math.Sin(degToRad(eps)) * math.Sin(degToRad(lambda))))

	y := math.Tan(degToRad(eps)/2) * math.Tan(degToRad(eps)/2)
	eqTimeMin = radToDeg(y*math.Sin(degToRad(2*l0))-
		2*e*math.Sin(degToRad(m))+
		4*e*y*math.Sin(degToRad(m))*math.Cos(degToRad(2*l0))-
		0.5*y*y*math.Sin(degToRad(4*l0))-
		1.25*e*e*math.Sin(degToRad(2*m))) * 4
	return decl, eqTimeMin
}

// PositionAt returns the sun's elevation and azimuth (degrees clockwise from north) at t.
func PositionAt(t time.Time, lat, lon float64) Position {
	t = t.UTC()
	decl, eqTimeMin := declination(t)

	utcMin := float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60.0
	tst := utcMin + 4*lon + eqTimeMin
	ha := tst/4 - 180

	latRad := degToRad(lat)
	declRad := degToRad(decl)
	cosZen := math.Sin(latRad)*math.Sin(declRad) + math.Cos(latRad)*math.Cos(declRad)*math.Cos(degToRad(ha))
	cosZen = math.Max(-1, math.Min(1, cosZen))
	zenRad := math.Acos(cosZen)

	pos := Position{
		ElevationDeg:   90 - radToDeg(zenRad),
		DeclinationDeg: decl,
		EqOfTimeMin:    eqTimeMin,
	}

	azDen := math.Cos(latRad) * math.Sin(zenRad)
	if math.Abs(azDen) < 1e-9 {
		return pos
	}
	azCos := (math.Sin(declRad) - math.Sin(latRad)*cosZen) / azDen
	az := radToDeg(math.Acos(math.Max(-1, math.Min(1, azCos))))
	if fixAngle(ha+180) > 180 {
		az = 360 - az
	}
	pos.AzimuthDeg = az
	return pos
}

// MaxElevation is the sun's elevation at solar noon on the day of t.
func MaxElevation(t time.Time, lat float64) float64 {
	decl, _ := declination(t)
	return 90 - math.Abs(lat-decl)
}

// Daylight summarises where now sits between sunrise and sunset.
type Daylight struct {
	Sunrise         time.Time     `json:"sunrise"`
	Sunset          time.Time     `json:"sunset"`
	Duration        time.Duration `json:"duration"`
	Progress        float64       `json:"progress"`
	IsDay           bool          `json:"isDay"`
	MaxElevationDeg float64       `json:"maxElevationDeg"`
	ZenithScale     float64       `json:"zenithScale"`
}

// Summarize reports progress through the day (0 at sunrise, 1 at sunset, clamped) and the
// noon elevation scaled to 0.2..1 against a 75 degree reference.
func Summarize(now, sunrise, sunset time.Time, lat float64) Daylight {
	d := Daylight{
		Sunrise:  sunrise,
		Sunset:   sunset,
		Duration: sunset.Sub(sunrise),
		IsDay:    !now.Before(sunrise) && !now.After(sunset),
	}
	if d.Duration > 0 {
		p := float64(now.Sub(sunrise)) / float64(d.Duration)
		d.Progress = math.Max(0, math.Min(1, p))
	}

	d.MaxElevationDeg = math.Round(MaxElevation(sunrise, lat))
	d.ZenithScale = math.Max(0.2, math.Min(1, d.MaxElevationDeg/75))
	return d
}
