// Package timezones is a sample plugin class for time zone aware templates:
// filters converting timestamps into the instance zone, a zone picker tag and
// a small net/http handler returning JSON zone choices for those pickers.
//
// The default zone list is embedded from data/zones.txt; instances may
// narrow it with the zones setting.
package timezones
