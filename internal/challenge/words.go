package challenge

// phraseWords is the pool challenge phrases are drawn from. Two words
// plus a two-digit suffix gives roughly 6.5 million distinct phrases,
// enough that two issuances inside a 24-hour window are not observably
// repeated. Words are short, unambiguous when spoken, and avoid
// near-homophones so the matcher's transcription step stays reliable.
var phraseWords = []string{
	"amber", "anchor", "apron", "arbor", "atlas", "autumn", "badge", "basil",
	"beacon", "birch", "bishop", "blanket", "bramble", "brass", "breeze", "brick",
	"bridge", "bronze", "bucket", "butter", "cabin", "camera", "candle", "canyon",
	"carbon", "cargo", "castle", "cedar", "cellar", "chalk", "chapel", "cherry",
	"chess", "cinder", "circle", "citrus", "clover", "cobalt", "column", "comet",
	"compass", "copper", "coral", "cotton", "cradle", "crater", "cricket", "crystal",
	"curtain", "cypress", "dagger", "daisy", "delta", "denim", "dome", "drift",
	"eagle", "easel", "echo", "ember", "emerald", "engine", "fable", "falcon",
	"feather", "fennel", "ferry", "fiddle", "flint", "forest", "fossil", "fountain",
	"galaxy", "garnet", "gazebo", "ginger", "glacier", "goblet", "granite", "grove",
	"hammer", "harbor", "harvest", "hazel", "heron", "hickory", "hollow", "honey",
	"horizon", "hunter", "indigo", "iris", "island", "ivory", "jacket", "jasmine",
	"jasper", "jigsaw", "juniper", "kettle", "kindle", "lagoon", "lantern", "larch",
	"latch", "laurel", "lavender", "ledger", "lemon", "lilac", "lily", "linen",
	"lobster", "locket", "lotus", "lumber", "magnet", "magnolia", "mallet", "mango",
	"mantle", "maple", "marble", "marigold", "marsh", "meadow", "mellow", "mercury",
	"meteor", "mirror", "mosaic", "mulberry", "mustard", "myrtle", "nectar", "nickel",
	"nimbus", "north", "nutmeg", "oasis", "obsidian", "olive", "onyx", "opal",
	"orchard", "orchid", "osprey", "otter", "oyster", "paddle", "pagoda", "palm",
	"panther", "parlor", "pebble", "pelican", "pepper", "pewter", "pigeon", "pillar",
	"pine", "pistachio", "planet", "plaza", "plum", "pocket", "pollen", "poplar",
	"poppy", "portal", "prairie", "prism", "pumpkin", "quartz", "quill", "quilt",
	"rabbit", "raven", "reef", "ribbon", "ridge", "river", "robin", "rocket",
	"rosewood", "ruby", "rudder", "saddle", "saffron", "sage", "salmon", "sandal",
	"sapphire", "satchel", "scarlet", "sequoia", "shadow", "shell", "shingle", "silver",
	"sketch", "slate", "sorrel", "sparrow", "spindle", "spruce", "squire", "stable",
	"static", "steeple", "stone", "stream", "summit", "sunset", "swallow", "sycamore",
	"tanager", "tangelo", "teapot", "temple", "thimble", "thistle", "timber", "topaz",
	"torch", "trellis", "trumpet", "tulip", "tundra", "turnip", "umber", "valley",
	"vanilla", "velvet", "verbena", "vessel", "viola", "violet", "walnut", "walrus",
	"wander", "waterfall", "wheat", "whistle", "willow", "window", "winter", "wisteria",
	"wonder", "wren", "yarrow", "yonder", "zephyr", "zinnia", "zircon", "zither",
}
