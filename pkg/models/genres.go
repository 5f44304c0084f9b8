package models

// Genres is the numbered catalogue offered in the genre menu
var Genres = []string{
	"Fantasy", "Science Fiction", "Mystery", "Romance",
	"Adventure", "Horror", "Historical Fiction", "Comedy",
	"Thriller", "Drama", "Dystopian", "Paranormal",
	"Young Adult", "Children's Fiction", "Crime", "Superhero",
	"Western", "Slice of Life", "Fairy Tale", "Mythology",
	"Urban Fantasy", "Historical Romance", "Psychological Thriller",
	"Dark Fantasy", "Epic Fantasy", "Space Opera", "Post-Apocalyptic",
	"Steampunk", "Cyberpunk", "Detective Fiction", "Medical Fiction",
	"Political Fiction", "Satire", "Military Fiction", "Gothic",
	"Spy Fiction", "Legal Thriller", "Biographical Fiction",
	"Coming of Age", "Family Saga", "Time Travel", "Road Trip",
}
