package ai

// Style examples fed to the prompt generator so it keeps the dixit-like
// register instead of drifting into generic landscape prompts.
var examplePrompts = []string{
	"a giraffe conducting an orchestra of penguins in a ballroom",
	"an octopus knitting sweaters inside a phone booth",
	"a lighthouse keeper playing chess with a seagull at dawn",
	"a robot watering sunflowers on the moon",
	"a bear in a business suit waiting for a bus in the rain",
	"a goldfish driving a convertible through a car wash",
	"a knight jousting with a baguette in a supermarket aisle",
	"an astronaut walking a jellyfish on a leash through a park",
	"a snail delivering mail on a tiny red bicycle",
	"a dragon roasting marshmallows with scouts around a campfire",
}

var exampleJokes = []string{
	"I asked the AI to draw me a sandwich. It said it couldn't — it was already toast.",
	"Why don't images ever win arguments? They always get framed.",
	"My painting of a black hole was rejected. Apparently it lacked depth.",
	"The pixel went to therapy because it felt a little square.",
	"Why did the prompt blush? It saw the image render.",
}
