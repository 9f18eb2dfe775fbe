package domain

import "slices"

// Icons members can pick from
var Icons = []string{
	"apple-alt", "candy-cane", "carrot", "cat", "cheese", "cookie", "crow", "dog", "dove", "dragon", "egg", "fish",
	"frog", "hamburger", "hippo", "horse", "hotdog", "ice-cream", "kiwi-bird", "leaf", "lemon", "otter", "paw",
	"pepper-hot", "pizza-slice", "spider", "holly-berry", "bat", "deer", "duck", "elephant", "monkey", "narwhal",
	"pig", "rabbit", "sheep", "squirrel", "turtle", "whale", "salad", "pumpkin", "wheat", "burrito", "cheese-swiss",
	"croissant", "drumstick", "egg-fried", "french-fries", "gingerbread-man", "hat-chef", "meat", "pie", "popcorn",
	"sausage", "steak", "taco", "turkey",
}

// IsIcon reports whether the icon is in the catalogue
func IsIcon(icon string) bool {
	return slices.Contains(Icons, icon)
}
